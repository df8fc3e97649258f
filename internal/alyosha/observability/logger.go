// Package observability provides structured logging setup for Alyosha.
//
// It wraps log/slog so that every component logs through the same handler
// with a consistent level and format chosen at startup.
package observability

import (
	"log/slog"
	"os"
)

// Setup configures the global slog logger according to the provided level and
// format strings (e.g. level="info", format="json").
func Setup(level, format string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithTurn returns a child of base that carries the turn ID every pipeline
// stage logs under, so one conversation turn can be followed across
// intent/memory/generation log lines. A nil base uses the default logger.
func WithTurn(base *slog.Logger, turnID string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if turnID == "" {
		return base
	}
	return base.With("turn_id", turnID)
}
