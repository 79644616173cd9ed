// Package logger provides a thin wrapper around slog for diagnostics.
//
// Every "skip and continue" path in the engine reports here; nothing in
// this codebase is allowed to terminate the process over a bad line,
// file, or watch handle.
package logger

import (
	"log/slog"
	"os"
)

// Logger is the process-wide logger. Writes to stderr so it never
// interferes with terminal UI output on stdout.
var Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// SetOutput replaces the logger, used by main to redirect diagnostics
// to a file while the TUI owns the terminal.
func SetOutput(l *slog.Logger) {
	Logger = l
}
