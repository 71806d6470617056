// Package logging provides the structured logger passed by reference from
// the Run Controller to every long-lived component, replacing the
// process-wide logger singleton pattern.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Options configures a Logger at construction time.
type Options struct {
	Level     string // debug, info, warn, error; defaults to info
	Writer    io.Writer
	Console   bool // human-readable console output instead of JSON
	Component string
}

// Logger wraps a configured zerolog.Logger with the small API the rest of
// the engine depends on.
type Logger struct {
	z zerolog.Logger
}

// New builds a Logger from Options.
func New(opts Options) *Logger {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	if opts.Console {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
	}

	level := parseLevel(opts.Level)
	base := zerolog.New(writer).With().Timestamp().Logger().Level(level)
	if opts.Component != "" {
		base = base.With().Str("component", opts.Component).Logger()
	}
	return &Logger{z: base}
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// With returns a derived Logger that always carries the supplied fields.
func (l *Logger) With(fields map[string]any) *Logger {
	if l == nil {
		return nil
	}
	ctx := l.z.With()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	for _, k := range keys {
		ctx = ctx.Interface(k, fields[k])
	}
	return &Logger{z: ctx.Logger()}
}

// Component returns a derived Logger tagged with the given component name,
// the shape most callers reach for.
func (l *Logger) Component(name string) *Logger {
	return l.With(map[string]any{"component": name})
}

func (l *Logger) Info(msg string, fields ...any)  { l.event(l.z.Info(), msg, fields...) }
func (l *Logger) Debug(msg string, fields ...any) { l.event(l.z.Debug(), msg, fields...) }
func (l *Logger) Warn(msg string, fields ...any)  { l.event(l.z.Warn(), msg, fields...) }

// Error logs msg at error level, attaching err when present.
func (l *Logger) Error(err error, msg string, fields ...any) {
	if l == nil {
		return
	}
	ev := l.z.Error()
	if err != nil {
		ev = ev.Err(err)
	}
	l.event(ev, msg, fields...)
}

// event applies key/value pairs (alternating key, value) to ev and fires it.
func (l *Logger) event(ev *zerolog.Event, msg string, fields ...any) {
	if l == nil || ev == nil {
		return
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, fields[i+1])
	}
	ev.Msg(strings.TrimSpace(msg))
}

// Noop returns a Logger that discards everything, useful as a safe default
// in tests and for callers that did not configure logging.
func Noop() *Logger {
	return New(Options{Writer: io.Discard})
}
