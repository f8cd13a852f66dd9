package circuitbreaker

type State int32

const (
	StateClosed   State = iota // Normal operation, failures are counted
	StateOpen                  // Tripped, callers should fail fast
	StateHalfOpen              // Probing, one trial call decides reset or re-trip
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}
