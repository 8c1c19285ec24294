// File: logging/logger.go
// Package logging provides the structured logging sink consumed across the
// fiber runtime, the RPC fabric, and the connection pool.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package logging

import (
	"go.uber.org/zap"
)

// Logger is the minimal sink every component accepts. Components never
// import zap directly; they depend on this interface so the logging
// backend stays swappable.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger
}

type zapLogger struct {
	l *zap.Logger
}

func (z *zapLogger) Debug(msg string, fields ...zap.Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...zap.Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...zap.Field)  { z.l.Warn(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...zap.Field) { z.l.Error(msg, fields...) }
func (z *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{l: z.l.With(fields...)}
}

// New wraps an existing *zap.Logger.
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapLogger{l: l}
}

// NewProduction builds a JSON production logger, matching the pack's
// convention of defaulting to zap's production config.
func NewProduction() Logger {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	return New(l)
}

// NewDevelopment builds a human-readable console logger, for the example
// binaries under cmd/.
func NewDevelopment() Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	return New(l)
}

// Nop returns a Logger that discards everything, the default for every
// constructor that accepts an optional Logger.
func Nop() Logger {
	return New(zap.NewNop())
}

// Field re-exports so callers needn't import zap for simple calls.
var (
	String = zap.String
	Int    = zap.Int
	Uint32 = zap.Uint32
	Uint64 = zap.Uint64
	Err    = zap.Error
	Bool   = zap.Bool
	Duration = zap.Duration
)
