package main

import (
	"encoding/json"
	"net/http"

	"github.com/angeloszaimis/circuit-breaker/internal/circuitbreaker"
	"github.com/angeloszaimis/circuit-breaker/internal/handler"
	"github.com/angeloszaimis/circuit-breaker/internal/metrics"
)

func setupRouter(gateway *handler.GatewayHandler, metricsCollector *metrics.Collector, registry *circuitbreaker.Registry) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", gateway.ServeHTTP)
	mux.HandleFunc("/metrics", metricsCollector.Handler())
	mux.HandleFunc("/breakers", breakersHandler(registry))

	return mux
}

// breakersHandler reports the current state of every circuit breaker.
func breakersHandler(registry *circuitbreaker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := registry.Stats()

		states := make(map[string]string, len(stats))
		for name, state := range stats {
			states[name] = state.String()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(states); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
