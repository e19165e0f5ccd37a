// logging.go: Pluggable logging for the plugin guard system
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginguard

import (
	"context"
	"sync"
)

// loggerContextKey is a custom type for context keys to avoid collisions
type loggerContextKey string

const loggerKey loggerContextKey = "logger"

// Logger defines the pluggable logging interface for the guard system.
//
// Boundaries and the watchdog log every state transition, suppressed failure,
// and recovery attempt through this interface. Any logging framework can be
// plugged in by implementing it; ZerologAdapter ships with the library, and
// nil loggers fall back to a silent NoOpLogger.
//
// Example usage:
//
//	boundary := NewErrorBoundary("cache", DefaultBoundaryConfig(), NewZerologAdapter(zl))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, args ...any)

	// Info logs an info message with optional key-value pairs
	Info(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs
	Warn(msg string, args ...any)

	// Error logs an error message with optional key-value pairs
	Error(msg string, args ...any)

	// With returns a new logger with persistent context key-value pairs
	With(args ...any) Logger
}

// NewLogger normalizes the logger inputs accepted by constructors.
//
// Supported types:
//   - Logger interface: Used directly
//   - nil: Returns NoOpLogger for silent operation
//   - Unsupported types: Panic with descriptive message
func NewLogger(logger any) Logger {
	switch l := logger.(type) {
	case Logger:
		return l
	case nil:
		return NewNoOpLogger()
	default:
		panic("unsupported logger type: expected Logger interface or nil")
	}
}

// NoOpLogger provides a silent logger implementation for testing and
// minimal setups.
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-operation logger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Debug implements Logger interface (no-op)
func (n *NoOpLogger) Debug(msg string, args ...any) {}

// Info implements Logger interface (no-op)
func (n *NoOpLogger) Info(msg string, args ...any) {}

// Warn implements Logger interface (no-op)
func (n *NoOpLogger) Warn(msg string, args ...any) {}

// Error implements Logger interface (no-op)
func (n *NoOpLogger) Error(msg string, args ...any) {}

// With implements Logger interface (no-op)
func (n *NoOpLogger) With(args ...any) Logger {
	return n
}

// TestLogger captures log messages for assertions in tests.
type TestLogger struct {
	mu       sync.RWMutex
	Messages []TestLogMessage
}

// TestLogMessage represents a captured log message.
type TestLogMessage struct {
	Level   string
	Message string
	Args    []any
}

// NewTestLogger creates a new test logger.
func NewTestLogger() *TestLogger {
	return &TestLogger{
		Messages: make([]TestLogMessage, 0),
	}
}

func (t *TestLogger) record(level, msg string, args []any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = append(t.Messages, TestLogMessage{
		Level:   level,
		Message: msg,
		Args:    args,
	})
}

// Debug implements Logger interface (captures message)
func (t *TestLogger) Debug(msg string, args ...any) { t.record("DEBUG", msg, args) }

// Info implements Logger interface (captures message)
func (t *TestLogger) Info(msg string, args ...any) { t.record("INFO", msg, args) }

// Warn implements Logger interface (captures message)
func (t *TestLogger) Warn(msg string, args ...any) { t.record("WARN", msg, args) }

// Error implements Logger interface (captures message)
func (t *TestLogger) Error(msg string, args ...any) { t.record("ERROR", msg, args) }

// With implements Logger interface. Context chaining is not needed for test
// assertions, so the same capture sink is returned.
func (t *TestLogger) With(args ...any) Logger {
	return t
}

// HasMessage checks if the logger captured a message with the given level
// and text.
func (t *TestLogger) HasMessage(level, message string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, msg := range t.Messages {
		if msg.Level == level && msg.Message == message {
			return true
		}
	}
	return false
}

// Clear removes all captured messages.
func (t *TestLogger) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = t.Messages[:0]
}

// DefaultLogger creates the default logger for the library.
//
// Returns NoOpLogger; applications are expected to supply their own Logger
// (or a ZerologAdapter) when they want output.
func DefaultLogger() Logger {
	return NewNoOpLogger()
}

// LoggerFromContext extracts a logger from context if available, falling back
// to DefaultLogger.
func LoggerFromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return DefaultLogger()
}

// ContextWithLogger adds a logger to the context.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}
