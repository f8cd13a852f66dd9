package handler

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/circuit-breaker/internal/metrics"
)

// GatewayHandler routes requests to upstreams by the first path segment and
// fails fast when the upstream's circuit breaker is open. Call outcomes are
// reported back to the breaker: a 5xx response or proxy error counts as a
// failure, everything else as a success.
type GatewayHandler struct {
	logger           *slog.Logger
	routes           map[string]*Route
	metricsCollector *metrics.Collector
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func NewGatewayHandler(logger *slog.Logger, routes map[string]*Route, collector *metrics.Collector) *GatewayHandler {
	return &GatewayHandler{
		logger:           logger,
		routes:           routes,
		metricsCollector: collector,
	}
}

func (g *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)
	name, rest := splitRoute(r.URL.Path)

	route, ok := g.routes[name]
	if !ok {
		http.NotFound(w, r)
		return
	}

	g.logger.Info("Received request",
		slog.String("from", clientIP),
		slog.String("method", r.Method),
		slog.String("upstream", name),
		slog.String("path", r.URL.Path))

	if !route.Allow() {
		g.logger.Warn("Circuit open, failing fast",
			slog.String("client", clientIP),
			slog.String("upstream", name))

		g.emitEvent(metrics.MetricEvent{
			Type:      metrics.EventCallRejected,
			Timestamp: time.Now(),
			Upstream:  name,
		})

		http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	g.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventCallForwarded,
		Timestamp: time.Now(),
		Upstream:  name,
	})

	up := route.Upstream()
	up.IncrementConn()
	defer up.DecrementConn()

	w.Header().Set("X-Upstream", up.URL().String())

	proxied := r.Clone(r.Context())
	proxied.URL.Path = rest

	wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	start := time.Now()
	up.ReverseProxy().ServeHTTP(wrapped, proxied)
	duration := time.Since(start)

	if wrapped.statusCode >= http.StatusInternalServerError {
		route.Breaker().OperationFailed()
	} else {
		route.Breaker().OperationSucceeded()
	}

	g.emitEvent(metrics.MetricEvent{
		Type:       metrics.EventCallCompleted,
		Timestamp:  time.Now(),
		Upstream:   name,
		Duration:   duration,
		StatusCode: wrapped.statusCode,
	})
	up.RecordResponse(duration)
}

// splitRoute takes the first path segment as the upstream name and keeps the
// remainder as the forwarded path.
func splitRoute(path string) (name string, rest string) {
	trimmed := strings.TrimPrefix(path, "/")
	name, rest, found := strings.Cut(trimmed, "/")
	if !found {
		return name, "/"
	}
	return name, "/" + rest
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func (g *GatewayHandler) emitEvent(event metrics.MetricEvent) {
	if g.metricsCollector == nil {
		return
	}

	g.metricsCollector.Emit(event)
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
