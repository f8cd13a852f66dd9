// Package probe drives circuit breaker recovery for idle upstreams.
//
// Without traffic a half-open breaker would never see the trial call that
// closes it again. The probe loop fills that gap: it periodically calls the
// upstream's health endpoint and reports the outcome to the breaker, acting
// as one more ordinary caller.
package probe
