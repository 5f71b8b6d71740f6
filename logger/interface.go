// Package logger defines the structured logging contract used by the fetch client
// and a zerolog-backed implementation of it.
package logger

import "time"

// Logger is the log sink handed to the fetch client.
// Implementations must never panic, whatever fields they are given.
type Logger interface {
	Info() LogEvent
	Error() LogEvent
	Debug() LogEvent
	Warn() LogEvent
	WithFields(fields map[string]any) Logger
}

// LogEvent is a single structured entry under construction. It is emitted by Msg or Msgf.
type LogEvent interface {
	Msg(msg string)
	Msgf(format string, args ...any)
	Err(err error) LogEvent
	Str(key, value string) LogEvent
	Int(key string, value int) LogEvent
	Int64(key string, value int64) LogEvent
	Bool(key string, value bool) LogEvent
	Dur(key string, d time.Duration) LogEvent
	Interface(key string, i any) LogEvent
	Bytes(key string, val []byte) LogEvent
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return NewWithWriter(nopWriter{}, "disabled", false, nil)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
