// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package rlog is the small context-carrying leveled logger used throughout
// reccaster, in the call-convention of the teacher's "logger.Infof(ctx, ...)"
// helpers: one line per event, no structured fields, cheap to call on a hot
// path.
package rlog

import (
	"context"
	"fmt"
	"log"
	"os"
)

// Level is a logging verbosity level.
type Level int

const (
	// Error is for conditions that abort a phase or cycle.
	Error Level = iota
	// Info is for phase transitions and other one-line-per-event status.
	Info
	// Debug is for detail not needed outside of development.
	Debug
)

func (l Level) String() string {
	switch l {
	case Error:
		return "ERROR"
	case Info:
		return "INFO"
	case Debug:
		return "DEBUG"
	default:
		return "?"
	}
}

// Logger is a minimal leveled logger, constructed with New; the zero value
// has no output writer. Default logs Info and Error to os.Stderr and
// discards Debug.
type Logger struct {
	out     *log.Logger
	minimum Level
}

// New returns a Logger writing to out with the given minimum level.
func New(out *log.Logger, minimum Level) *Logger {
	return &Logger{out: out, minimum: minimum}
}

// Default is the package-level logger used by the free functions below.
var Default = New(log.New(os.Stderr, "reccaster: ", log.LstdFlags), Info)

type ctxKey struct{}

// WithLogger returns a context carrying logger, retrieved by the free
// functions in this package when present.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func from(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok && logger != nil {
		return logger
	}
	return Default
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level > l.minimum {
		return
	}
	l.out.Printf("%s %s", level, fmt.Sprintf(format, args...))
}

// Infof logs at Info level.
func (l *Logger) Infof(format string, args ...interface{}) { l.log(Info, format, args...) }

// Errorf logs at Error level.
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(Error, format, args...) }

// Debugf logs at Debug level.
func (l *Logger) Debugf(format string, args ...interface{}) { l.log(Debug, format, args...) }

// Infof logs at Info level using the Logger attached to ctx, or Default.
func Infof(ctx context.Context, format string, args ...interface{}) {
	from(ctx).Infof(format, args...)
}

// Errorf logs at Error level using the Logger attached to ctx, or Default.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	from(ctx).Errorf(format, args...)
}

// Debugf logs at Debug level using the Logger attached to ctx, or Default.
func Debugf(ctx context.Context, format string, args ...interface{}) {
	from(ctx).Debugf(format, args...)
}
