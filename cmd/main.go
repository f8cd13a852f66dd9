package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angeloszaimis/circuit-breaker/config"
	"github.com/angeloszaimis/circuit-breaker/internal/circuitbreaker"
	"github.com/angeloszaimis/circuit-breaker/internal/handler"
	"github.com/angeloszaimis/circuit-breaker/internal/httpserver"
	"github.com/angeloszaimis/circuit-breaker/internal/metrics"
	"github.com/angeloszaimis/circuit-breaker/internal/probe"
	"github.com/angeloszaimis/circuit-breaker/internal/upstream"
	"github.com/angeloszaimis/circuit-breaker/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry, err := circuitbreaker.NewRegistry(cfg.Breaker.FailureThreshold, cfg.OpenTimeout())
	if err != nil {
		log.Error("Failed to create breaker registry", slog.Any("err", err))
		os.Exit(1)
	}
	defer registry.StopAll()

	collector := metrics.NewCollector(1000, log)
	collector.Start(ctx)

	routes, err := buildRoutes(ctx, cfg, registry, collector, log)
	if err != nil {
		log.Error("Failed to initialize upstreams", slog.Any("err", err))
		os.Exit(1)
	}

	gateway := handler.NewGatewayHandler(log, routes, collector)

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(gateway, collector, registry))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Gateway listening",
		slog.String("address", cfg.Server.Address),
		slog.Int("upstreams", len(routes)),
		slog.Int("failure_threshold", cfg.Breaker.FailureThreshold),
		slog.String("open_timeout", cfg.Breaker.OpenTimeout))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func buildRoutes(
	ctx context.Context,
	cfg *config.Config,
	registry *circuitbreaker.Registry,
	collector *metrics.Collector,
	log *slog.Logger,
) (map[string]*handler.Route, error) {
	routes := make(map[string]*handler.Route, len(cfg.Upstreams))

	for _, uc := range cfg.Upstreams {
		u, err := url.Parse(uc.URL)
		if err != nil {
			log.Error("Failed to parse upstream URL",
				slog.String("upstream", uc.Name),
				slog.String("url", uc.URL),
				slog.String("error", err.Error()))
			continue
		}

		up := upstream.New(uc.Name, u)
		cb := registry.GetBreaker(uc.Name)
		watchBreaker(uc.Name, cb, log, collector)

		routes[uc.Name] = handler.NewRoute(up, cb)

		if cfg.Probe.Enabled {
			go probe.Run(ctx, up, cb, cfg.ProbeInterval(), cfg.Probe.Path, log)
		}
	}

	if len(routes) == 0 {
		return nil, os.ErrInvalid
	}

	return routes, nil
}

// watchBreaker logs state changes and feeds them into the metrics pipeline.
func watchBreaker(name string, cb *circuitbreaker.CircuitBreaker, log *slog.Logger, collector *metrics.Collector) {
	emit := func(state circuitbreaker.State) {
		collector.Emit(metrics.MetricEvent{
			Type:      metrics.EventStateChanged,
			Timestamp: time.Now(),
			Upstream:  name,
			State:     state.String(),
		})
	}

	cb.OnOpen(func() {
		log.Warn("Circuit opened", slog.String("upstream", name))
		emit(circuitbreaker.StateOpen)
	})

	cb.OnHalfOpen(func() {
		log.Info("Circuit probing for recovery", slog.String("upstream", name))
		emit(circuitbreaker.StateHalfOpen)
	})

	cb.OnClosed(func() {
		log.Info("Circuit closed", slog.String("upstream", name))
		emit(circuitbreaker.StateClosed)
	})
}
