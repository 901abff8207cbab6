// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logger

import (
	"log"
	"os"
	"sync"
)

var (
	mu       sync.RWMutex
	loggers  []Logger
	fallback = NewStdLogger(os.Stdout, "", log.LstdFlags)

	logEventPool = sync.Pool{New: func() any {
		return &LogEvent{}
	}}
)

type Logger interface {
	Debugf(format string, args ...any)
	Debug(args ...any)
	Infof(format string, args ...any)
	Info(args ...any)
	Warnf(format string, args ...any)
	Warn(args ...any)
	Errorf(format string, args ...any)
	Error(args ...any)
	Fatalf(format string, args ...any)
	Fatal(args ...any)
}

type levelSetter interface {
	SetLevel(level Level)
}

type syncer interface {
	Sync() error
}

type LogEvent struct {
	Level   Level
	Format  string
	Args    []any
	IsFatal bool
}

func acquireLogEvent(level Level, format string, args ...any) *LogEvent {
	logEvent := logEventPool.Get().(*LogEvent)
	logEvent.Level = level
	logEvent.Format = format
	logEvent.Args = args
	logEvent.IsFatal = level == FatalLevel
	return logEvent
}

func releaseLogEvent(event *LogEvent) {
	event.Level = TraceLevel
	event.Format = ""
	event.Args = nil
	event.IsFatal = false
	logEventPool.Put(event)
}

// InitDefaultLogger builds the zap logger described by config and installs it
// as the only package logger. A nil config uses DefaultConfig.
func InitDefaultLogger(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	baseLogger, err := NewZapLoggerWithConfig(config)
	if err != nil {
		return err
	}

	var logger Logger = baseLogger
	if config.Async {
		logger = NewAsyncLogger(baseLogger, config.AsyncChannelSize)
	}

	SetLoggers(logger)
	return nil
}

type AsyncLogger struct {
	backend  Logger
	channel  chan *LogEvent
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

func NewAsyncLogger(backend Logger, bufferSize int) *AsyncLogger {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	logger := &AsyncLogger{
		backend:  backend,
		channel:  make(chan *LogEvent, bufferSize),
		stopChan: make(chan struct{}),
	}

	logger.wg.Add(1)
	go logger.processEvents()

	return logger
}

func (l *AsyncLogger) processEvents() {
	defer l.wg.Done()
	for {
		select {
		case event := <-l.channel:
			l.handleEvent(event)
		case <-l.stopChan:
			l.flushEvents()
			return
		}
	}
}

func (l *AsyncLogger) handleEvent(event *LogEvent) {
	if event == nil {
		return
	}

	defer releaseLogEvent(event)

	switch event.Level {
	case TraceLevel, DebugLevel:
		if event.Format != "" {
			l.backend.Debugf(event.Format, event.Args...)
		} else {
			l.backend.Debug(event.Args...)
		}
	case InfoLevel:
		if event.Format != "" {
			l.backend.Infof(event.Format, event.Args...)
		} else {
			l.backend.Info(event.Args...)
		}
	case WarnLevel:
		if event.Format != "" {
			l.backend.Warnf(event.Format, event.Args...)
		} else {
			l.backend.Warn(event.Args...)
		}
	case ErrorLevel:
		if event.Format != "" {
			l.backend.Errorf(event.Format, event.Args...)
		} else {
			l.backend.Error(event.Args...)
		}
	case FatalLevel:
		if event.Format != "" {
			l.backend.Fatalf(event.Format, event.Args...)
		} else {
			l.backend.Fatal(event.Args...)
		}
	}
}

func (l *AsyncLogger) flushEvents() {
	for {
		select {
		case event := <-l.channel:
			l.handleEvent(event)
		default:
			return
		}
	}
}

// Stop drains pending events and stops the worker. Safe to call twice.
func (l *AsyncLogger) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
	})
}

func (l *AsyncLogger) SetLevel(level Level) {
	if ls, ok := l.backend.(levelSetter); ok {
		ls.SetLevel(level)
	}
}

func (l *AsyncLogger) Sync() error {
	l.Stop()
	if s, ok := l.backend.(syncer); ok {
		return s.Sync()
	}
	return nil
}

func (l *AsyncLogger) Debugf(format string, args ...any) {
	l.channel <- acquireLogEvent(DebugLevel, format, args...)
}

func (l *AsyncLogger) Debug(args ...any) {
	l.channel <- acquireLogEvent(DebugLevel, "", args...)
}

func (l *AsyncLogger) Infof(format string, args ...any) {
	l.channel <- acquireLogEvent(InfoLevel, format, args...)
}

func (l *AsyncLogger) Info(args ...any) {
	l.channel <- acquireLogEvent(InfoLevel, "", args...)
}

func (l *AsyncLogger) Warnf(format string, args ...any) {
	l.channel <- acquireLogEvent(WarnLevel, format, args...)
}

func (l *AsyncLogger) Warn(args ...any) {
	l.channel <- acquireLogEvent(WarnLevel, "", args...)
}

func (l *AsyncLogger) Errorf(format string, args ...any) {
	l.channel <- acquireLogEvent(ErrorLevel, format, args...)
}

func (l *AsyncLogger) Error(args ...any) {
	l.channel <- acquireLogEvent(ErrorLevel, "", args...)
}

func (l *AsyncLogger) Fatalf(format string, args ...any) {
	l.Stop()
	l.backend.Fatalf(format, args...)
}

func (l *AsyncLogger) Fatal(args ...any) {
	l.Stop()
	l.backend.Fatal(args...)
}

func current() []Logger {
	mu.RLock()
	defer mu.RUnlock()
	if len(loggers) == 0 {
		return []Logger{fallback}
	}
	return loggers
}

func Debugf(msg string, fields ...any) {
	for _, logger := range current() {
		logger.Debugf(msg, fields...)
	}
}

func Debug(fields ...any) {
	for _, logger := range current() {
		logger.Debug(fields...)
	}
}

func Infof(msg string, fields ...any) {
	for _, logger := range current() {
		logger.Infof(msg, fields...)
	}
}

func Info(fields ...any) {
	for _, logger := range current() {
		logger.Info(fields...)
	}
}

func Warnf(msg string, fields ...any) {
	for _, logger := range current() {
		logger.Warnf(msg, fields...)
	}
}

func Warn(fields ...any) {
	for _, logger := range current() {
		logger.Warn(fields...)
	}
}

func Errorf(msg string, fields ...any) {
	for _, logger := range current() {
		logger.Errorf(msg, fields...)
	}
}

func Error(fields ...any) {
	for _, logger := range current() {
		logger.Error(fields...)
	}
}

func Fatalf(msg string, fields ...any) {
	for _, logger := range current() {
		logger.Fatalf(msg, fields...)
	}
	os.Exit(1)
}

func Fatal(fields ...any) {
	for _, logger := range current() {
		logger.Fatal(fields...)
	}
	os.Exit(1)
}

// AddLogger appends loggers to the package fan-out list.
func AddLogger(logger ...Logger) {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range logger {
		if l != nil {
			loggers = append(loggers, l)
		}
	}
}

// SetLoggers replaces the fan-out list. With no arguments the package falls
// back to the std logger on stdout.
func SetLoggers(logger ...Logger) {
	mu.Lock()
	loggers = nil
	mu.Unlock()
	AddLogger(logger...)
}

// SetLevel adjusts the level of every installed logger that supports it.
func SetLevel(level Level) {
	for _, l := range current() {
		if ls, ok := l.(levelSetter); ok {
			ls.SetLevel(level)
		}
	}
}

// Sync flushes every installed logger.
func Sync() {
	for _, l := range current() {
		if s, ok := l.(syncer); ok {
			_ = s.Sync()
		}
	}
}
