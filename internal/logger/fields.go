package logger

import (
	"time"

	"go.uber.org/zap"
)

// Typed field constructors, so callers never import zap directly.

func String(key, val string) Field { return zap.String(key, val) }

func Int(key string, val int) Field { return zap.Int(key, val) }

func Int64(key string, val int64) Field { return zap.Int64(key, val) }

func Float64(key string, val float64) Field { return zap.Float64(key, val) }

func Bool(key string, val bool) Field { return zap.Bool(key, val) }

func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }

func Time(key string, val time.Time) Field { return zap.Time(key, val) }

func Strings(key string, val []string) Field { return zap.Strings(key, val) }

func Any(key string, val any) Field { return zap.Any(key, val) }

// Error creates a field for an error value under the key "error".
func Error(err error) Field { return zap.Error(err) }
