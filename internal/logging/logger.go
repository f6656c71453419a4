// Package logging provides the planner's structured logger. Entries are JSON
// lines or key=value text; the solving packages log through zap, which
// NewZapLogger routes into the same Logger.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log entry.
type LogLevel string

const (
	// DebugLevel carries per step solver detail and is usually disabled.
	DebugLevel LogLevel = "DEBUG"
	// InfoLevel is the default logging priority.
	InfoLevel LogLevel = "INFO"
	WarnLevel LogLevel = "WARN"
	// ErrorLevel logs are high-priority. A healthy planner run emits none.
	ErrorLevel LogLevel = "ERROR"
	// FatalLevel logs a message, then exits the process.
	FatalLevel LogLevel = "FATAL"
)

func (l LogLevel) rank() int {
	switch l {
	case DebugLevel:
		return 0
	case InfoLevel:
		return 1
	case WarnLevel:
		return 2
	case ErrorLevel:
		return 3
	case FatalLevel:
		return 4
	}
	return -1
}

// Format selects how entries are rendered.
type Format string

const (
	FormatJSON Format = "json"
	// FormatText renders "time LEVEL message key=value ..." with sorted keys.
	FormatText Format = "text"
)

// Fields are the structured values attached to an entry.
type Fields = map[string]interface{}

// Option configures a Logger.
type Option func(*Logger)

// WithFormat selects the output format. Unknown formats fall back to JSON.
func WithFormat(f Format) Option {
	return func(l *Logger) { l.format = f }
}

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// Logger writes structured entries to an io.Writer. Loggers derived with
// WithFields share the writer and its lock.
type Logger struct {
	level  LogLevel
	format Format
	output io.Writer
	mu     *sync.Mutex
	fields Fields
	now    func() time.Time
	exit   func(code int)
}

// New creates a new Logger with the specified log level and output.
func New(level LogLevel, output io.Writer, opts ...Option) *Logger {
	l := &Logger{
		level:  level,
		format: FormatJSON,
		output: output,
		mu:     &sync.Mutex{},
		fields: make(Fields),
		now:    time.Now,
		exit:   os.Exit,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithFields returns a derived Logger that adds fields to every entry.
func (l *Logger) WithFields(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	derived := *l
	derived.fields = merged
	return &derived
}

// WithField returns a derived Logger with one more field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(Fields{key: value})
}

// WithError returns a derived Logger with the error field set.
func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err.Error())
}

// Level returns the minimum level the logger writes.
func (l *Logger) Level() LogLevel {
	return l.level
}

// shouldLog reports whether entries at level pass the logger's threshold.
func (l *Logger) shouldLog(level LogLevel) bool {
	r, threshold := level.rank(), l.level.rank()
	return r >= 0 && threshold >= 0 && r >= threshold
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "???"
	}
	if parts := strings.Split(file, "/"); len(parts) > 2 {
		file = strings.Join(parts[len(parts)-2:], "/")
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// log writes one entry. The caller field, when absent from fields, names the
// function that called the public logging method.
func (l *Logger) log(level LogLevel, msg string, fields Fields) {
	if !l.shouldLog(level) {
		return
	}

	entry := make(Fields, len(l.fields)+len(fields)+4)
	for k, v := range l.fields {
		entry[k] = plain(v)
	}
	for k, v := range fields {
		entry[k] = plain(v)
	}
	if _, ok := entry["caller"]; !ok {
		entry["caller"] = caller(3)
	}
	ts := l.now().UTC().Format(time.RFC3339Nano)

	var line []byte
	if l.format == FormatText {
		line = textLine(ts, level, msg, entry)
	} else {
		entry["timestamp"] = ts
		entry["level"] = level
		entry["message"] = msg
		data, err := json.Marshal(entry)
		if err != nil {
			data = []byte(fmt.Sprintf("%s [%s] %s: %+v", ts, level, msg, fields))
		}
		line = append(data, '\n')
	}

	l.mu.Lock()
	_, _ = l.output.Write(line)
	l.mu.Unlock()

	if level == FatalLevel {
		l.exit(1)
	}
}

// plain renders values JSON cannot represent usefully.
func plain(v interface{}) interface{} {
	switch x := v.(type) {
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	}
	return v
}

func textLine(ts string, level LogLevel, msg string, entry Fields) []byte {
	keys := make([]string, 0, len(entry))
	for k := range entry {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", ts, level, msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry[k])
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func first(fields []Fields) Fields {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// Debug logs a message at DebugLevel.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(DebugLevel, msg, first(fields))
}

// Info logs a message at InfoLevel.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(InfoLevel, msg, first(fields))
}

// Warn logs a message at WarnLevel.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(WarnLevel, msg, first(fields))
}

// Error logs a message at ErrorLevel.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(ErrorLevel, msg, first(fields))
}

// Fatal logs a message at FatalLevel, then exits with status 1.
func (l *Logger) Fatal(msg string, fields ...map[string]interface{}) {
	l.log(FatalLevel, msg, first(fields))
}

// CtxLogger is a logger carried in a context.Context.
type CtxLogger struct {
	*Logger
}

type ctxLoggerKey struct{}

// FromContext returns the context's logger, or an Info logger on stderr
// when there is none.
func FromContext(ctx context.Context) *CtxLogger {
	if logger, ok := ctx.Value(ctxLoggerKey{}).(*CtxLogger); ok {
		return logger
	}
	return &CtxLogger{New(InfoLevel, os.Stderr)}
}

// WithContext returns a new context carrying the logger.
func (l *CtxLogger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, l)
}
