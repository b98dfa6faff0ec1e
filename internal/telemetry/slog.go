// Package telemetry configures the process-wide structured logger.
//
// All entrypoint logging goes through log/slog to stderr: stdout is
// reserved for command output (reports, plans) so scripts can parse it,
// and after the exec handoff the server owns both streams anyway.
package telemetry

import (
	"log/slog"
	"os"
)

// Options controls logger construction.
type Options struct {
	// Debug enables debug-level records. Set by --verbose, or by the
	// deployment's DEBUG flag.
	Debug bool

	// JSON switches from the human text handler to JSON records, for
	// deployments that ship container logs into a log pipeline.
	JSON bool
}

// Setup installs the default slog logger according to opts and returns it.
// Safe to call more than once; the last call wins (the CLI re-runs it when
// the environment requests a different level than the flags did).
func Setup(opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
