// Package handler implements the gateway's request path. Requests are routed
// to an upstream by the first path segment; each upstream is guarded by a
// circuit breaker that the handler consults before forwarding and reports
// call outcomes to. While a breaker is open the handler fails fast with 503;
// in half-open it admits exactly one trial call per probe window.
package handler
