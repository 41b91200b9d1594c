// Package logger provides opinionated logging for the connector
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a human-readable console logger on stdout.
func NewLogger(debug bool) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return newLogger(zapcore.NewConsoleEncoder(encoderConfig), os.Stdout, debug)
}

// NewJSONLogger returns a JSON logger on stdout for log collectors.
func NewJSONLogger(debug bool) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return newLogger(zapcore.NewJSONEncoder(encoderConfig), os.Stdout, debug)
}

// NewFileLogger writes console-formatted logs to path, for terminal UIs that
// own stdout. The returned close function flushes and closes the file.
func NewFileLogger(path string, debug bool) (*zap.Logger, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	l := newLogger(zapcore.NewConsoleEncoder(encoderConfig), f, debug)
	return l, func() error {
		_ = l.Sync()
		return f.Close()
	}, nil
}

func newLogger(encoder zapcore.Encoder, out zapcore.WriteSyncer, debug bool) *zap.Logger {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), level)
	return zap.New(core, zap.AddCaller())
}

// ParseLevel reports whether s names the debug level. Anything else logs at
// info.
func ParseLevel(s string) bool {
	l, err := zapcore.ParseLevel(s)
	return err == nil && l <= zapcore.DebugLevel
}
