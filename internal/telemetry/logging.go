// Package telemetry wires up structured logging and OTel metrics/tracing
// at process startup (spec.md's ambient observability stack). Individual
// packages hold their own slog.Logger fields (worker, scheduler, evaluator)
// and package-level otel.Tracer/otel.Meter handles (store, worker); this
// package only builds the root logger and installs the global OTel
// providers.
package telemetry

import (
	"log/slog"
	"os"
)

// LogFormat selects the slog handler used for the root logger.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// NewLogger builds the process-wide root logger. format defaults to JSON
// (the teacher uses slog.NewTextHandler for CLI output and
// slog.NewJSONHandler-style structured output for daemon/server contexts;
// this service runs as a long-lived daemon, so JSON is the default).
func NewLogger(format LogFormat, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
