package upstream

import (
	"net/http/httputil"
	"net/url"
	"sync"
	"time"
)

// Upstream represents one guarded service behind the gateway, with its
// reverse proxy, connection tracking and response time monitoring.
type Upstream struct {
	name              string
	url               *url.URL
	proxy             *httputil.ReverseProxy
	mutex             sync.Mutex
	activeConnections int
	ewmaResponseTime  time.Duration
	hasEWMA           bool
}

const ewmaAlpha = 0.2

// New creates an Upstream for the given name and base URL.
func New(name string, url *url.URL) *Upstream {
	return &Upstream{
		name:  name,
		url:   url,
		proxy: httputil.NewSingleHostReverseProxy(url),
	}
}

// Name returns the upstream's configured name.
func (u *Upstream) Name() string {
	return u.name
}

// URL returns the upstream's base URL.
func (u *Upstream) URL() *url.URL {
	return u.url
}

// ReverseProxy returns the HTTP reverse proxy for this upstream.
func (u *Upstream) ReverseProxy() *httputil.ReverseProxy {
	return u.proxy
}

// IncrementConn increments the active connection count.
func (u *Upstream) IncrementConn() {
	u.mutex.Lock()
	u.activeConnections++
	u.mutex.Unlock()
}

// DecrementConn decrements the active connection count.
func (u *Upstream) DecrementConn() {
	u.mutex.Lock()
	if u.activeConnections > 0 {
		u.activeConnections--
	}
	u.mutex.Unlock()
}

// ActiveConnections returns the current number of active connections.
func (u *Upstream) ActiveConnections() int {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return u.activeConnections
}

// RecordResponse updates the exponentially weighted moving average (EWMA)
// response time using the latest request duration.
func (u *Upstream) RecordResponse(duration time.Duration) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.hasEWMA {
		u.ewmaResponseTime = duration
		u.hasEWMA = true
		return
	}
	//ewma = (1 - α) * ewma + α * latest
	u.ewmaResponseTime = time.Duration((1-ewmaAlpha)*float64(u.ewmaResponseTime) + ewmaAlpha*float64(duration))
}

// EWMATime returns the exponentially weighted moving average response time.
// Returns 0 if no responses have been recorded yet.
func (u *Upstream) EWMATime() time.Duration {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.hasEWMA {
		return 0
	}

	return u.ewmaResponseTime
}
