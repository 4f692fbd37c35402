// Package logging builds the zap.Logger every binary in this module
// shares, grounded on the teacher's cmd/main.go initLogger: a
// zap.NewProductionConfig with stdout plus a rolling file sink, level
// selected from config.LogConfig. The rolling-file behavior itself is
// handed to lumberjack rather than zap's own (nonexistent) built-in
// rotation, matching grand-thief-cash-chaos's zap-core-over-lumberjack
// wiring.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"leeksaver/internal/config"
)

// New builds a zap.Logger writing structured JSON to stdout and to a
// lumberjack-rotated file at cfg.File.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	if dir := filepath.Dir(cfg.File); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	level := levelFromString(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxOrDefault(cfg.MaxSize, 100),
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
	stdoutWriter := zapcore.AddSync(os.Stdout)

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, fileWriter, level),
		zapcore.NewCore(encoder, stdoutWriter, level),
	)

	return zap.New(core, zap.AddCaller()), nil
}

func levelFromString(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func maxOrDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}
