package handler

import (
	"sync/atomic"

	"github.com/angeloszaimis/circuit-breaker/internal/circuitbreaker"
	"github.com/angeloszaimis/circuit-breaker/internal/upstream"
)

// Route pairs an upstream with the circuit breaker guarding it.
type Route struct {
	upstream *upstream.Upstream
	breaker  *circuitbreaker.CircuitBreaker

	// probeGate admits exactly one trial call per half-open period.
	probeGate atomic.Bool
}

// NewRoute wires the route's probe gate to the breaker: every entry into
// half-open arms the gate for a single trial call.
func NewRoute(up *upstream.Upstream, cb *circuitbreaker.CircuitBreaker) *Route {
	rt := &Route{
		upstream: up,
		breaker:  cb,
	}

	cb.OnHalfOpen(func() {
		rt.probeGate.Store(true)
	})

	return rt
}

// Allow reports whether a call to the upstream should be attempted.
// Closed admits everything, open nothing, half-open a single trial call.
func (rt *Route) Allow() bool {
	if rt.breaker.IsHalfOpen() {
		return rt.probeGate.CompareAndSwap(true, false)
	}

	return !rt.breaker.IsOpen()
}

// Upstream returns the guarded upstream.
func (rt *Route) Upstream() *upstream.Upstream {
	return rt.upstream
}

// Breaker returns the breaker guarding the upstream.
func (rt *Route) Breaker() *circuitbreaker.CircuitBreaker {
	return rt.breaker
}
