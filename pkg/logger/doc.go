// Package logger builds the application's slog.Logger from the configured
// level and environment. Production output is JSON, everything else text.
package logger
