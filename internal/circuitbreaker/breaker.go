package circuitbreaker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrInvalidThreshold is returned by New when the failure threshold is not positive.
var ErrInvalidThreshold = errors.New("failure threshold must be at least 1")

// ErrInvalidTimeout is returned by New when the open timeout is shorter than one second.
var ErrInvalidTimeout = errors.New("open timeout must be at least one second")

// CircuitBreaker tracks the health of calls to a single dependency.
//
// Callers report outcomes through OperationSucceeded and OperationFailed and
// decide whether to attempt a call by reading IsOpen. The breaker never
// performs the protected call itself.
type CircuitBreaker struct {
	failureThreshold int64
	openTimeoutSecs  int64

	state    atomic.Int32 // State; zero value is StateClosed
	failures atomic.Int64
	elapsed  atomic.Int64 // whole seconds spent in the current Open period

	// generation is bumped on every committed transition so that a recovery
	// countdown from a previous Open period can never affect a later one.
	generation atomic.Int64

	// mutex serializes transition commits and notification delivery.
	// Subscribers must not call back into the breaker from a notification.
	mutex      sync.Mutex
	onClosed   []func()
	onOpen     []func()
	onHalfOpen []func()

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a circuit breaker that trips after failureThreshold consecutive
// failures and probes for recovery openTimeout after tripping. The timeout is
// truncated to whole seconds. Non-positive thresholds and timeouts shorter
// than one second are rejected.
func New(failureThreshold int, openTimeout time.Duration) (*CircuitBreaker, error) {
	if failureThreshold < 1 {
		return nil, ErrInvalidThreshold
	}

	openTimeout = openTimeout.Truncate(time.Second)
	if openTimeout < time.Second {
		return nil, ErrInvalidTimeout
	}

	return newBreaker(failureThreshold, int64(openTimeout/time.Second)), nil
}

// newBreaker assumes the parameters were already validated.
func newBreaker(failureThreshold int, openTimeoutSecs int64) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: int64(failureThreshold),
		openTimeoutSecs:  openTimeoutSecs,
		done:             make(chan struct{}),
	}
}

// OperationSucceeded reports a successful call.
// While closed it resets the failure count; while half-open it closes the
// circuit; while open it is a no-op, since no call should have been attempted.
func (cb *CircuitBreaker) OperationSucceeded() {
	switch State(cb.state.Load()) {
	case StateClosed:
		cb.failures.Store(0)
	case StateHalfOpen:
		cb.reset()
	}
}

// OperationFailed reports a failed call.
// While closed the increment that reaches the threshold trips the circuit;
// while half-open the failed probe re-trips it; while open it is a no-op.
func (cb *CircuitBreaker) OperationFailed() {
	switch State(cb.state.Load()) {
	case StateClosed:
		if cb.failures.Add(1) >= cb.failureThreshold {
			cb.trip()
		}
	case StateHalfOpen:
		cb.trip()
	}
}

// IsClosed reports whether the circuit is currently closed.
func (cb *CircuitBreaker) IsClosed() bool {
	return State(cb.state.Load()) == StateClosed
}

// IsOpen reports whether the circuit is currently open.
func (cb *CircuitBreaker) IsOpen() bool {
	return State(cb.state.Load()) == StateOpen
}

// IsHalfOpen reports whether the circuit is currently half-open.
func (cb *CircuitBreaker) IsHalfOpen() bool {
	return State(cb.state.Load()) == StateHalfOpen
}

// State returns the current state of the circuit.
func (cb *CircuitBreaker) State() State {
	return State(cb.state.Load())
}

// Failures returns the current failure count. It is only meaningful while
// the circuit is closed; every transition out of Closed resets it.
func (cb *CircuitBreaker) Failures() int {
	return int(cb.failures.Load())
}

// OnClosed registers fn to run every time the circuit closes.
// Notifications run synchronously on the goroutine that committed the
// transition, exactly once per entry into the state.
func (cb *CircuitBreaker) OnClosed(fn func()) {
	cb.mutex.Lock()
	cb.onClosed = append(cb.onClosed, fn)
	cb.mutex.Unlock()
}

// OnOpen registers fn to run every time the circuit trips open.
func (cb *CircuitBreaker) OnOpen(fn func()) {
	cb.mutex.Lock()
	cb.onOpen = append(cb.onOpen, fn)
	cb.mutex.Unlock()
}

// OnHalfOpen registers fn to run every time the circuit starts probing.
func (cb *CircuitBreaker) OnHalfOpen(fn func()) {
	cb.mutex.Lock()
	cb.onHalfOpen = append(cb.onHalfOpen, fn)
	cb.mutex.Unlock()
}

// Stop releases the recovery countdown goroutine, if one is running.
// The breaker no longer transitions on timeout after Stop. Stop is idempotent.
func (cb *CircuitBreaker) Stop() {
	cb.stopOnce.Do(func() {
		close(cb.done)
	})
}

// trip commits the transition to Open. Permitted from Closed and HalfOpen;
// a no-op when already open, so concurrent failures past the threshold raise
// the Open notification exactly once.
func (cb *CircuitBreaker) trip() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch State(cb.state.Load()) {
	case StateClosed, StateHalfOpen:
	default:
		return
	}

	gen := cb.generation.Add(1)
	cb.failures.Store(0)
	cb.elapsed.Store(0)
	cb.state.Store(int32(StateOpen))

	go cb.countdown(gen)

	cb.notify(cb.onOpen)
}

// attemptReset commits the transition to HalfOpen. Only permitted from Open
// and only for the Open period the countdown was started for; a tick racing
// a concurrent transition is silently ignored here.
func (cb *CircuitBreaker) attemptReset(gen int64) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.generation.Load() != gen || State(cb.state.Load()) != StateOpen {
		return
	}

	cb.generation.Add(1)
	cb.state.Store(int32(StateHalfOpen))

	cb.notify(cb.onHalfOpen)
}

// reset commits the transition to Closed. Only permitted from HalfOpen.
func (cb *CircuitBreaker) reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if State(cb.state.Load()) != StateHalfOpen {
		return
	}

	cb.generation.Add(1)
	cb.failures.Store(0)
	cb.state.Store(int32(StateClosed))

	cb.notify(cb.onClosed)
}

func (cb *CircuitBreaker) notify(subscribers []func()) {
	for _, fn := range subscribers {
		fn()
	}
}

// countdown counts the seconds of one Open period on a one-second ticker and
// attempts the reset to HalfOpen when the open timeout is reached. It exits
// as soon as the breaker has moved on to another state or generation.
func (cb *CircuitBreaker) countdown(gen int64) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cb.done:
			return
		case <-ticker.C:
			if cb.generation.Load() != gen {
				return
			}
			if cb.elapsed.Add(1) >= cb.openTimeoutSecs {
				cb.attemptReset(gen)
				return
			}
		}
	}
}
