package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates an slog.Logger writing to stdout. Production environments get
// JSON output, everything else human-readable text. Unknown levels fall back
// to info.
func New(level string, addSource bool, environment string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, addSource, environment)
}

// NewWithWriter is New with an explicit output destination.
func NewWithWriter(w io.Writer, level string, addSource bool, environment string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: addSource,
	}

	var handler slog.Handler
	if strings.ToLower(environment) == "prod" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("environment", environment),
	)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
