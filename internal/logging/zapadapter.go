package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapCore is a zapcore.Core that writes through a Logger, so the solver's zap
// output lands in the same stream, format and level as everything else.
type zapCore struct {
	logger *Logger
}

// NewZapCore returns a zapcore.Core forwarding to logger.
func NewZapCore(logger *Logger) zapcore.Core {
	return &zapCore{logger: logger}
}

// NewZapLogger returns a *zap.Logger forwarding to logger, with callers.
func NewZapLogger(logger *Logger) *zap.Logger {
	return zap.New(NewZapCore(logger), zap.AddCaller())
}

func levelOf(l zapcore.Level) LogLevel {
	switch {
	case l <= zapcore.DebugLevel:
		return DebugLevel
	case l == zapcore.InfoLevel:
		return InfoLevel
	case l == zapcore.WarnLevel:
		return WarnLevel
	case l == zapcore.FatalLevel:
		return FatalLevel
	default:
		return ErrorLevel
	}
}

// fieldsOf encodes zap fields with zap's own map encoder, which knows every
// field type including stringers, durations and errors.
func fieldsOf(fields []zapcore.Field) Fields {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return enc.Fields
}

func (c *zapCore) Enabled(level zapcore.Level) bool {
	return c.logger.shouldLog(levelOf(level))
}

func (c *zapCore) With(fields []zapcore.Field) zapcore.Core {
	return &zapCore{logger: c.logger.WithFields(fieldsOf(fields))}
}

func (c *zapCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write logs the entry. Fatal entries exit through the Logger; panic levels
// are logged as errors and left to zap, which panics after Write.
func (c *zapCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	f := fieldsOf(fields)
	if ent.Caller.Defined {
		f["caller"] = ent.Caller.TrimmedPath()
	}
	if ent.LoggerName != "" {
		f["logger"] = ent.LoggerName
	}
	c.logger.log(levelOf(ent.Level), ent.Message, f)
	return nil
}

func (c *zapCore) Sync() error {
	return nil
}
