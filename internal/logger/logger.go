// Package logger provides structured logging configuration and initialization.
package logger

import (
	"log/slog"
	"os"

	"github.com/docsight/docsight/internal/config"
)

// New creates a slog.Logger configured from the logging configuration.
func New(cfg *config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}

	var handler slog.Handler
	if cfg.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
