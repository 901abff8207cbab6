// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logger

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func newRotatingWriter(cfg *Config) io.Writer {
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, cfg.BaseName+".log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
}

func NewZapLoggerWithConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	return newZapLogger(cfg, nil)
}

// newZapLogger builds the tee of cores described by cfg. A non-nil out
// replaces the main rotating file, which tests use to capture output.
func newZapLogger(cfg *Config, out zapcore.WriteSyncer) (*zapLoggerWrapper, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	cores := []zapcore.Core{}
	level := zap.NewAtomicLevelAt(cfg.Level.toZapLevel())

	if out != nil {
		cores = append(cores, zapcore.NewCore(encoder, out, level))
	} else {
		if cfg.LogDir != "" {
			if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
				return nil, err
			}
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(newRotatingWriter(cfg)), level))

		if cfg.EnableWarnFile {
			warnCfg := cfg.Clone()
			warnCfg.BaseName += "-warn"
			cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(newRotatingWriter(warnCfg)), zap.LevelEnablerFunc(func(l zapcore.Level) bool {
				return l >= zapcore.WarnLevel
			})))
		}

		if cfg.EnableErrorFile {
			errorCfg := cfg.Clone()
			errorCfg.BaseName += "-error"
			cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(newRotatingWriter(errorCfg)), zap.LevelEnablerFunc(func(l zapcore.Level) bool {
				return l >= zapcore.ErrorLevel
			})))
		}
	}

	if cfg.EnableStdout {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level))
	}

	zapLogger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(2)).Sugar()

	return &zapLoggerWrapper{logger: zapLogger, level: level}, nil
}

type zapLoggerWrapper struct {
	logger *zap.SugaredLogger
	level  zap.AtomicLevel
}

// SetLevel changes the level at runtime, used on config reload.
func (z *zapLoggerWrapper) SetLevel(level Level) {
	z.level.SetLevel(level.toZapLevel())
}

func (z *zapLoggerWrapper) Sync() error {
	return z.logger.Sync()
}

func (z *zapLoggerWrapper) Debugf(format string, args ...any) {
	z.logger.Debugf(format, args...)
}

func (z *zapLoggerWrapper) Debug(args ...any) {
	z.logger.Debug(args...)
}

func (z *zapLoggerWrapper) Infof(format string, args ...any) {
	z.logger.Infof(format, args...)
}

func (z *zapLoggerWrapper) Info(args ...any) {
	z.logger.Info(args...)
}

func (z *zapLoggerWrapper) Warnf(format string, args ...any) {
	z.logger.Warnf(format, args...)
}

func (z *zapLoggerWrapper) Warn(args ...any) {
	z.logger.Warn(args...)
}

func (z *zapLoggerWrapper) Errorf(format string, args ...any) {
	z.logger.Errorf(format, args...)
}

func (z *zapLoggerWrapper) Error(args ...any) {
	z.logger.Error(args...)
}

func (z *zapLoggerWrapper) Fatalf(format string, args ...any) {
	z.logger.Fatalf(format, args...)
}

func (z *zapLoggerWrapper) Fatal(args ...any) {
	z.logger.Fatal(args...)
}
