// Package config loads and validates the gateway configuration.
//
// Configuration is read from config.yaml (looked up in ./config and the
// working directory) with environment variable overrides, and validated
// before use. The breaker section carries the shared circuit breaker
// parameters; the upstreams section lists the services the gateway guards.
package config
