// Package upstream models the services guarded by the gateway. Each upstream
// carries its reverse proxy, active connection count and response time EWMA;
// its availability is decided by the circuit breaker that guards it.
package upstream
