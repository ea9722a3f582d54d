package logging

import (
	"io"
	"log/slog"
	"os"
)

// SetupJSON installs a JSON logger on stdout at level as slog's default and
// returns it. Every record carries the service name.
func SetupJSON(level slog.Level, service string) *slog.Logger {
	logger := New(os.Stdout, level, service)
	slog.SetDefault(logger)

	return logger
}

// New builds a JSON logger writing to w.
func New(w io.Writer, level slog.Level, service string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	if service != "" {
		logger = logger.With("service", service)
	}

	return logger
}
