// Package klog is the kernel core's ambient structured-logging
// collaborator: one log/slog logger per subsystem, in the manner
// internal/log does it in the LC-3 emulator this corpus also carries —
// a package-wide level var and a small constructor rather than a
// bespoke logging framework.
package klog

import (
	"log/slog"
	"os"
)

// Level, Logger, and Attr alias slog's types so callers never import
// log/slog directly just to name a level or build an attribute.
type (
	Level  = slog.Level
	Logger = slog.Logger
	Attr   = slog.Attr
)

const (
	Debug = slog.LevelDebug
	Info  = slog.LevelInfo
	Warn  = slog.LevelWarn
	Error = slog.LevelError
)

/// LevelVar holds the process-wide minimum log level; tests and
/// cmd/kmon can raise or lower it at runtime.
var LevelVar = &slog.LevelVar{}

var root = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
	Level: LevelVar,
}))

/// For returns a logger scoped to subsystem, tagged with a "subsys"
/// attribute on every record it emits.
func For(subsystem string) *Logger {
	return root.With(slog.String("subsys", subsystem))
}

/// SetOutput replaces the root logger's handler so that loggers
/// returned by later For calls write to w. Loggers already returned by
/// For, including the package-level ones each subsystem creates at
/// initialisation, keep writing to the handler they were built on.
func SetOutput(w interface{ Write([]byte) (int, error) }) {
	root = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: LevelVar,
	}))
}
