// Package logger provides process-wide structured logging for vha.
// Warnings and errors are always written; debug and info records are
// only emitted when verbose mode is enabled via the --verbose flag.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	handler slog.Handler
)

func init() {
	rebuild()
}

// rebuild must be called with mu held for writing (or during init).
func rebuild() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	rebuild()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

func log(level slog.Level, msg string, args ...any) {
	mu.RLock()
	h := handler
	mu.RUnlock()
	l := slog.New(h)
	l.Log(context.Background(), level, msg, args...)
}

// Debug logs a message with key/value attributes when verbose.
func Debug(msg string, args ...any) { log(slog.LevelDebug, msg, args...) }

// Info logs a message with key/value attributes when verbose.
func Info(msg string, args ...any) { log(slog.LevelInfo, msg, args...) }

// Warn logs a warning.
func Warn(msg string, args ...any) { log(slog.LevelWarn, msg, args...) }

// Error logs an error.
func Error(msg string, args ...any) { log(slog.LevelError, msg, args...) }
