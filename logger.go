package main

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger writes JSON lines to a rotated file. With verbose, warnings and
// errors are also printed to stderr in console format.
func newLogger(logFile string, verbose bool) *zap.Logger {
	var cores []zapcore.Core

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err == nil {
			rotator := &lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    10, // Megabytes
				MaxBackups: 3,
				MaxAge:     30, // Days
				Compress:   true,
			}

			encoderConfig := zap.NewProductionEncoderConfig()
			encoderConfig.TimeKey = "timestamp"
			encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
			encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

			level := zap.InfoLevel
			if verbose {
				level = zap.DebugLevel
			}
			cores = append(cores, zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.AddSync(rotator),
				level,
			))
		}
	}

	if verbose {
		consoleConfig := zap.NewDevelopmentEncoderConfig()
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleConfig),
			zapcore.Lock(os.Stderr),
			zap.WarnLevel,
		))
	}

	if len(cores) == 0 {
		return zap.NewNop()
	}
	return zap.New(zapcore.NewTee(cores...))
}
