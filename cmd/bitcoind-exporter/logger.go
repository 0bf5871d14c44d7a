package main

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the process-wide logger. `logr` V-levels map onto zap's
// levels below info, so `--log-level=debug` enables V(1).
//
func newLogger(cfg *config) (logr.Logger, func(), error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return logr.Logger{}, nil, fmt.Errorf("parse level: %w", err)
	}

	var encoder zapcore.Encoder
	switch cfg.LogFormat {
	case "json":
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	sink := zapcore.AddSync(os.Stderr)
	closeSink := func() {}

	if cfg.LogFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}

		sink = zapcore.AddSync(rotated)
		closeSink = func() { _ = rotated.Close() }
	}

	zapLogger := zap.New(zapcore.NewCore(encoder, sink, level))

	cleanup := func() {
		_ = zapLogger.Sync()
		closeSink()
	}

	return zapr.NewLogger(zapLogger), cleanup, nil
}
