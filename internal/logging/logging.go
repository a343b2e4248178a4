// Package logging emits the service's JSON-lines log records through zerolog.
// Every record carries ts (RFC3339Nano in the configured location), level and,
// when given, msg.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const timestampField = "ts"

// Logger wraps a zerolog.Logger with the service's field conventions.
// It is safe for concurrent use.
type Logger struct {
	zl  zerolog.Logger
	loc *time.Location
}

// New returns a Logger writing to out. A nil out means stderr, a nil loc means UTC.
func New(out io.Writer, loc *time.Location) *Logger {
	if out == nil {
		out = os.Stderr
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Logger{zl: zerolog.New(zerolog.SyncWriter(out)), loc: loc}
}

// Nop discards everything. Handy for tests.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), loc: time.UTC}
}

// Location returns the time zone used for timestamps.
func (l *Logger) Location() *time.Location {
	return l.loc
}

// Info logs msg at info level.
func (l *Logger) Info(msg string, fields map[string]any) {
	l.emit(l.zl.Info(), msg, fields)
}

// Error logs msg at error level with err under the "error" key.
func (l *Logger) Error(msg string, err error, fields map[string]any) {
	l.emit(l.zl.Error().Err(err), msg, fields)
}

// Event logs a status-driven record the way migrations and startup report progress:
// level is derived from fields["status"] unless set explicitly, msg from fields["msg"].
func (l *Logger) Event(fields map[string]any) {
	level := zerolog.InfoLevel
	if fields["status"] == "error" {
		level = zerolog.ErrorLevel
	}
	if s, ok := fields["level"].(string); ok && s != "" {
		if parsed, err := zerolog.ParseLevel(s); err == nil {
			level = parsed
		}
	}
	msg, _ := fields["msg"].(string)

	rest := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != "level" && k != "msg" {
			rest[k] = v
		}
	}
	l.emit(l.zl.WithLevel(level), msg, rest)
}

func (l *Logger) emit(e *zerolog.Event, msg string, fields map[string]any) {
	if e == nil {
		return
	}
	e = e.Str(timestampField, time.Now().In(l.loc).Format(time.RFC3339Nano))
	if msg != "" {
		e = e.Str("msg", msg)
	}
	if len(fields) > 0 {
		e = e.Fields(fields)
	}
	e.Send()
}
