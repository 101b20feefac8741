package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps "debug", "info", "warn" or "error" to a slog level.
// Anything else reads as info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to w. format may be "json" or "text"
// (default "json").
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup installs the default slog logger for a service binary. Every
// record carries the service name.
func Setup(service, level, format string) *slog.Logger {
	logger := New(os.Stdout, level, format).With("service", service)
	slog.SetDefault(logger)
	return logger
}
