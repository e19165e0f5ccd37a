// logging_zerolog.go: Zerolog adapter for the pluggable Logger interface
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginguard

import (
	"github.com/rs/zerolog"
)

// ZerologAdapter bridges a zerolog.Logger to the guard system's Logger
// interface, preserving structured key-value pairs.
//
// Example usage:
//
//	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
//	boundary := NewErrorBoundary("mail", DefaultBoundaryConfig(), NewZerologAdapter(zl))
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter wraps a zerolog.Logger for use with the guard system.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Debug implements Logger interface
func (z *ZerologAdapter) Debug(msg string, args ...any) {
	z.logger.Debug().Fields(args).Msg(msg)
}

// Info implements Logger interface
func (z *ZerologAdapter) Info(msg string, args ...any) {
	z.logger.Info().Fields(args).Msg(msg)
}

// Warn implements Logger interface
func (z *ZerologAdapter) Warn(msg string, args ...any) {
	z.logger.Warn().Fields(args).Msg(msg)
}

// Error implements Logger interface
func (z *ZerologAdapter) Error(msg string, args ...any) {
	z.logger.Error().Fields(args).Msg(msg)
}

// With implements Logger interface, returning an adapter whose underlying
// zerolog context carries the additional fields.
func (z *ZerologAdapter) With(args ...any) Logger {
	return &ZerologAdapter{logger: z.logger.With().Fields(args).Logger()}
}
