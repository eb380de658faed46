// Package logger wraps zap behind a small structured logging interface.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a type alias for zapcore.Field.
type Field = zapcore.Field

// Logger is the structured logging interface used across the monitor.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that attaches the given fields to every entry.
	With(fields ...Field) Logger

	// Sync flushes buffered entries; call before process exit.
	Sync() error
}

type zapLogger struct {
	z *zap.Logger
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }
func (l *zapLogger) Sync() error                       { return l.z.Sync() }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}

// New creates a logger. Debug mode produces colorized console output at
// debug level; otherwise JSON output via zap's production config.
func New(debug bool) (Logger, error) {
	var z *zap.Logger
	var err error

	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Sampling = nil
		z, err = cfg.Build(zap.AddStacktrace(zapcore.WarnLevel))
	} else {
		z, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return &zapLogger{z: z}, nil
}

// NewNop returns a logger that discards everything. For tests.
func NewNop() Logger {
	return &zapLogger{z: zap.NewNop()}
}
