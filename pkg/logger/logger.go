// Package logger provides the shared slog logger and structured attribute helpers.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
)

// Module provides the application logger.
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// NewLogger creates the root slog logger. The level is taken from LOG_LEVEL
// (debug, info, warn, error; default info). In local development (GO_ENV
// unset or "local") logs are rendered as text, otherwise as JSON.
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	env := os.Getenv("GO_ENV")
	var handler slog.Handler
	if env == "" || env == "local" || env == "development" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

// Scope returns a slog attribute tagging log lines with a component scope,
// e.g. logger.Scope("things.repo").
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error returns a slog attribute for an error value.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}
