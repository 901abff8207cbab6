// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logger

import (
	"io"
	"log"
)

type stdLogger struct {
	logger *log.Logger
}

// NewStdLogger is the package fallback when no zap logger is installed.
func NewStdLogger(output io.Writer, prefix string, flag int) Logger {
	return &stdLogger{
		logger: log.New(output, prefix, flag),
	}
}

func (l *stdLogger) Debugf(format string, args ...any) {
	l.logger.Printf("[DEBUG] "+format, args...)
}

func (l *stdLogger) Debug(args ...any) {
	l.logger.Print(append([]any{"[DEBUG]"}, args...)...)
}

func (l *stdLogger) Infof(format string, args ...any) {
	l.logger.Printf("[INFO] "+format, args...)
}

func (l *stdLogger) Info(args ...any) {
	l.logger.Print(append([]any{"[INFO]"}, args...)...)
}

func (l *stdLogger) Warnf(format string, args ...any) {
	l.logger.Printf("[WARN] "+format, args...)
}

func (l *stdLogger) Warn(args ...any) {
	l.logger.Print(append([]any{"[WARN]"}, args...)...)
}

func (l *stdLogger) Errorf(format string, args ...any) {
	l.logger.Printf("[ERROR] "+format, args...)
}

func (l *stdLogger) Error(args ...any) {
	l.logger.Print(append([]any{"[ERROR]"}, args...)...)
}

func (l *stdLogger) Fatalf(format string, args ...any) {
	l.logger.Fatalf("[FATAL] "+format, args...)
}

func (l *stdLogger) Fatal(args ...any) {
	l.logger.Fatal(append([]any{"[FATAL]"}, args...)...)
}
