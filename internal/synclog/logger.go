// Package synclog provides the structured, subspace-scoped logger used by
// both the client and the server. It wraps log/slog rather than introducing
// a parallel logging abstraction: the tuple-prefixing behavior is the one
// thing slog does not give us for free, so that is the only thing this
// package adds.
package synclog

import (
	"fmt"
	"log/slog"
	"strings"
)

// Logger is the logging surface used throughout this module. Subspace
// returns a child logger whose messages are prefixed with name, nested
// under any parent subspaces — e.g. a server's client-registry code might
// log through logger.Subspace("clients").Subspace("poke"), producing
// messages prefixed "[clients/poke]". Implementers may substitute a no-op
// (see NoopLogger) where log output is undesired, such as in tests that
// assert on unrelated side effects.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Subspace(name string) Logger
}

// slogLogger is the default Logger, backed by log/slog.
type slogLogger struct {
	base  *slog.Logger
	tuple []string
}

// New wraps base as a Logger. A nil base falls back to slog.Default().
func New(base *slog.Logger) Logger {
	if base == nil {
		base = slog.Default()
	}
	return &slogLogger{base: base}
}

func (l *slogLogger) Subspace(name string) Logger {
	tuple := make([]string, len(l.tuple)+1)
	copy(tuple, l.tuple)
	tuple[len(tuple)-1] = name
	return &slogLogger{base: l.base, tuple: tuple}
}

func (l *slogLogger) prefixed(msg string) string {
	if len(l.tuple) == 0 {
		return msg
	}
	return fmt.Sprintf("[%s] %s", strings.Join(l.tuple, "/"), msg)
}

func (l *slogLogger) Debug(msg string, args ...any) { l.base.Debug(l.prefixed(msg), args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.base.Info(l.prefixed(msg), args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.base.Warn(l.prefixed(msg), args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.base.Error(l.prefixed(msg), args...) }
