// Package circuitbreaker implements the circuit breaker stability pattern.
//
// A circuit breaker prevents cascading failures by failing fast once a
// dependency has failed too often. It has three states:
//
//   - CLOSED: Normal operation, failures are counted
//   - OPEN: Tripped, callers should not attempt the call
//   - HALF-OPEN: Probing, one trial call decides reset or re-trip
//
// The breaker never performs the protected call. Callers check IsOpen,
// perform the call themselves and report the outcome:
//
//	cb, err := circuitbreaker.New(5, 30*time.Second)
//	if err != nil {
//	    return err
//	}
//	defer cb.Stop()
//
//	if cb.IsOpen() {
//	    return ErrUnavailable
//	}
//	if err := call(); err != nil {
//	    cb.OperationFailed()
//	} else {
//	    cb.OperationSucceeded()
//	}
//
// A tripped breaker stays open for the configured timeout, counted by a
// one-second recovery ticker, then moves to half-open. State-change
// subscribers (OnClosed, OnOpen, OnHalfOpen) run synchronously, exactly
// once per entry into the state.
package circuitbreaker
