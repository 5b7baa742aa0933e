// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import (
	"time"

	"github.com/luxfi/node/utils/logging"
	"go.uber.org/zap"
)

// Field is a structured logging field.
type Field = zap.Field

// Logger is the logging interface shared by every engine component
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Sync() error
}

// luxLogger wraps luxfi/node's Logger, which has no notion of bound fields
type luxLogger struct {
	log    logging.Logger
	fields []Field
}

// New creates a new logger at info level
func New() Logger {
	return NewWithLevel("info")
}

// NewWithLevel creates a new logger with specific level. Unknown levels
// fall back to info.
func NewWithLevel(level string) Logger {
	lvl, err := logging.ToLevel(level)
	if err != nil {
		lvl = logging.Info
	}
	return newLuxLogger("adengine", lvl)
}

// NewLogger creates a new named logger
func NewLogger(name string) Logger {
	return newLuxLogger(name, logging.Info)
}

func newLuxLogger(name string, lvl logging.Level) Logger {
	// Console only: the rotating file writer stays closed while LogLevel is Off.
	config := logging.Config{
		DisplayLevel: lvl,
		LogLevel:     logging.Off,
	}

	factory := logging.NewFactory(config)
	log, err := factory.Make(name)
	if err != nil {
		return &noOpLogger{}
	}

	return &luxLogger{log: log}
}

// FromLux wraps an existing luxfi/node logger
func FromLux(l logging.Logger) Logger {
	return &luxLogger{log: l}
}

// FromZap wraps an existing zap logger, mostly for tests using zaptest/observer
func FromZap(l *zap.Logger) Logger {
	return &zapLogger{log: l}
}

// NoOp returns a no-op logger
func NoOp() Logger {
	return &noOpLogger{}
}

// NoLog is a no-op logger instance
var NoLog = NoOp()

func (l *luxLogger) Debug(msg string, fields ...Field) { l.log.Debug(msg, l.bind(fields)...) }
func (l *luxLogger) Info(msg string, fields ...Field)  { l.log.Info(msg, l.bind(fields)...) }
func (l *luxLogger) Warn(msg string, fields ...Field)  { l.log.Warn(msg, l.bind(fields)...) }
func (l *luxLogger) Error(msg string, fields ...Field) { l.log.Error(msg, l.bind(fields)...) }

func (l *luxLogger) With(fields ...Field) Logger {
	return &luxLogger{log: l.log, fields: l.bind(fields)}
}

func (l *luxLogger) bind(fields []Field) []Field {
	if len(l.fields) == 0 {
		return fields
	}
	all := make([]Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	return append(all, fields...)
}

// Sync flushes any buffered log entries
func (l *luxLogger) Sync() error {
	l.log.Stop()
	return nil
}

// zapLogger wraps a zap.Logger
type zapLogger struct {
	log *zap.Logger
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.log.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.log.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.log.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.log.Error(msg, fields...) }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{log: l.log.With(fields...)}
}

func (l *zapLogger) Sync() error {
	return l.log.Sync()
}

// noOpLogger is a logger that does nothing
type noOpLogger struct{}

func (n *noOpLogger) Debug(msg string, fields ...Field) {}
func (n *noOpLogger) Info(msg string, fields ...Field)  {}
func (n *noOpLogger) Warn(msg string, fields ...Field)  {}
func (n *noOpLogger) Error(msg string, fields ...Field) {}
func (n *noOpLogger) With(fields ...Field) Logger       { return n }
func (n *noOpLogger) Sync() error                       { return nil }

func String(key, val string) Field {
	return zap.String(key, val)
}

func Stringer(key string, val interface{ String() string }) Field {
	return zap.Stringer(key, val)
}

func Int(key string, val int) Field {
	return zap.Int(key, val)
}

func Uint64(key string, val uint64) Field {
	return zap.Uint64(key, val)
}

func Bool(key string, val bool) Field {
	return zap.Bool(key, val)
}

func Duration(key string, val time.Duration) Field {
	return zap.Duration(key, val)
}

func Time(key string, val time.Time) Field {
	return zap.Time(key, val)
}

func Error(err error) Field {
	return zap.Error(err)
}
