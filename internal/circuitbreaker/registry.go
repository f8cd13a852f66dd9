package circuitbreaker

import (
	"sync"
	"time"
)

// Registry hands out one circuit breaker per upstream name, creating
// breakers lazily with a shared threshold and open timeout.
type Registry struct {
	mutex           sync.RWMutex
	breakers        map[string]*CircuitBreaker
	threshold       int
	openTimeoutSecs int64
}

// NewRegistry validates the shared breaker parameters once; every breaker
// the registry creates uses them.
func NewRegistry(threshold int, openTimeout time.Duration) (*Registry, error) {
	if threshold < 1 {
		return nil, ErrInvalidThreshold
	}

	openTimeout = openTimeout.Truncate(time.Second)
	if openTimeout < time.Second {
		return nil, ErrInvalidTimeout
	}

	return &Registry{
		breakers:        make(map[string]*CircuitBreaker),
		threshold:       threshold,
		openTimeoutSecs: int64(openTimeout / time.Second),
	}, nil
}

// GetBreaker returns the breaker for the named upstream, creating it on
// first use.
func (r *Registry) GetBreaker(name string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[name]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	cb = newBreaker(r.threshold, r.openTimeoutSecs)
	r.breakers[name] = cb
	return cb
}

// Stats returns a snapshot of every breaker's current state.
func (r *Registry) Stats() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]State, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.State()
	}
	return stats
}

// StopAll stops every breaker's recovery timer and empties the registry.
func (r *Registry) StopAll() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, cb := range r.breakers {
		cb.Stop()
	}
	r.breakers = make(map[string]*CircuitBreaker)
}
