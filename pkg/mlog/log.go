// Package mlog defines the logging contract used across the service and a
// zap-backed implementation of it.
package mlog

import (
	"context"
	"fmt"
	"strings"
)

// Logger is the common interface every component logs through. Handlers,
// use cases, and flows never import zap directly; they take a Logger.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)

	// WithFields returns a derived Logger that always includes the given
	// key/value pairs (odd-length input is invalid and panics, matching
	// zap.SugaredLogger.With semantics).
	WithFields(fields ...any) Logger

	Sync() error
}

// Level represents the minimum severity a Logger emits.
type Level int8

const (
	FatalLevel Level = iota
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

// ParseLevel takes a string level (case-insensitive) and returns a Level.
func ParseLevel(lvl string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "fatal":
		return FatalLevel, nil
	case "error":
		return ErrorLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	}

	return InfoLevel, fmt.Errorf("not a valid log level: %q", lvl)
}

type loggerCtxKey struct{}

// WithContext returns a context carrying the given Logger.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, l)
}

// FromContext extracts the Logger previously attached with WithContext,
// falling back to noop so callers never need a nil check.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(Logger); ok && l != nil {
		return l
	}

	return noop{}
}

type noop struct{}

func (noop) Info(...any)            {}
func (noop) Infof(string, ...any)   {}
func (noop) Error(...any)           {}
func (noop) Errorf(string, ...any)  {}
func (noop) Warn(...any)            {}
func (noop) Warnf(string, ...any)   {}
func (noop) Debug(...any)           {}
func (noop) Debugf(string, ...any)  {}
func (noop) Fatal(...any)           {}
func (noop) Fatalf(string, ...any)  {}
func (n noop) WithFields(...any) Logger { return n }
func (noop) Sync() error            { return nil }
