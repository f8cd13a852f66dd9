package probe

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/angeloszaimis/circuit-breaker/internal/circuitbreaker"
	"github.com/angeloszaimis/circuit-breaker/internal/upstream"
)

// Run periodically sends an HTTP GET to the upstream's health path and
// reports the outcome to the upstream's circuit breaker. While the breaker is
// open no probe is sent; once it moves to half-open the next probe is the
// trial call that decides between reset and re-trip.
func Run(
	ctx context.Context,
	up *upstream.Upstream,
	cb *circuitbreaker.CircuitBreaker,
	interval time.Duration,
	path string,
	logger *slog.Logger,
) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Probe stopped",
				slog.String("upstream", up.Name()))
			return

		case <-ticker.C:
			if cb.IsOpen() {
				continue
			}

			probeURL := up.URL().ResolveReference(&url.URL{Path: path})

			req, err := http.NewRequestWithContext(
				ctx, http.MethodGet, probeURL.String(), nil)
			if err != nil {
				continue
			}

			res, err := client.Do(req)
			if err != nil {
				cb.OperationFailed()
				logger.Debug("Probe failed",
					slog.String("upstream", up.Name()),
					slog.String("error", err.Error()))
				continue
			}
			res.Body.Close()

			if res.StatusCode == http.StatusOK {
				cb.OperationSucceeded()
			} else {
				cb.OperationFailed()
				logger.Debug("Probe returned unhealthy status",
					slog.String("upstream", up.Name()),
					slog.Int("status", res.StatusCode))
			}
		}
	}
}
