// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode error code
type ErrorCode int

// ErrorLevel error level
type ErrorLevel int

// ErrorCategory error category
type ErrorCategory string

const (
	LevelTrace ErrorLevel = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

const (
	CategorySystem  ErrorCategory = "system"
	CategoryNetwork ErrorCategory = "network"
	CategoryConfig  ErrorCategory = "config"
)

// system error code (1000-1999)
const (
	ErrCodeSystemUnknown       ErrorCode = 1000
	ErrCodeSystemInternalError ErrorCode = 1003
	ErrCodeSystemShutdown      ErrorCode = 1004
	ErrCodeSystemPanic         ErrorCode = 1005
)

// network error code (2000-2999)
const (
	ErrCodeNetworkUnknown          ErrorCode = 2000
	ErrCodeNetworkTimeout          ErrorCode = 2001
	ErrCodeNetworkConnectionLost   ErrorCode = 2002
	ErrCodeNetworkRefused          ErrorCode = 2003
	ErrCodeNetworkUnreachable      ErrorCode = 2004
	ErrCodeNetworkConnectionClosed ErrorCode = 2006
	ErrCodeNetworkClientClosed     ErrorCode = 2007
	ErrCodeNetworkServerClosed     ErrorCode = 2008
	ErrCodeNetworkTooManyConns     ErrorCode = 2009
)

// config error code (5000-5999)
const (
	ErrCodeConfigUnknown    ErrorCode = 5000
	ErrCodeConfigNotFound   ErrorCode = 5001
	ErrCodeConfigInvalid    ErrorCode = 5002
	ErrCodeConfigParseError ErrorCode = 5003
)

var (
	ErrConnectionClosed   = NetworkError(ErrCodeNetworkConnectionClosed, "connection closed")
	ErrClientClosed       = NetworkError(ErrCodeNetworkClientClosed, "client closed")
	ErrServerClosed       = NetworkError(ErrCodeNetworkServerClosed, "server closed")
	ErrTooManyConnections = NetworkError(ErrCodeNetworkTooManyConns, "too many connections")
)

type Error struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Category  ErrorCategory  `json:"category"`
	Level     ErrorLevel     `json:"level"`
	Timestamp time.Time      `json:"timestamp"`
	Stack     string         `json:"stack,omitempty"`
	Cause     error          `json:"cause,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Error implements error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%d] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%d] %s", e.Category, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithContext attaches a key/value to the error and returns it.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithCause returns a copy of e wrapping cause, so sentinels stay untouched.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.Cause = cause
	cp.Timestamp = time.Now()
	return &cp
}

// New create error
func New(code ErrorCode, category ErrorCategory, level ErrorLevel, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  category,
		Level:     level,
		Timestamp: time.Now(),
		Stack:     getStack(),
	}
}

// Newf create error with format message
func Newf(code ErrorCode, category ErrorCategory, level ErrorLevel, format string, args ...any) *Error {
	return New(code, category, level, fmt.Sprintf(format, args...))
}

// Wrap existing error with code, category, level and message
func Wrap(err error, code ErrorCode, category ErrorCategory, level ErrorLevel, message string) *Error {
	e := New(code, category, level, message)
	e.Cause = err
	return e
}

// Wrapf wrap existing error with code, category, level and format message
func Wrapf(err error, code ErrorCode, category ErrorCategory, level ErrorLevel, format string, args ...any) *Error {
	return Wrap(err, code, category, level, fmt.Sprintf(format, args...))
}

func getStack() string {
	var buf [4096]byte
	n := runtime.Stack(buf[:], false)
	lines := strings.Split(string(buf[:n]), "\n")
	filtered := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		if strings.Contains(lines[i], "iohook/pkg/errors.") {
			i++
			continue
		}
		filtered = append(filtered, lines[i])
	}

	return strings.Join(filtered, "\n")
}

// GetErrorCategory returns the error category for the given error code.
func GetErrorCategory(code ErrorCode) ErrorCategory {
	switch {
	case code >= 2000 && code < 3000:
		return CategoryNetwork
	case code >= 5000 && code < 6000:
		return CategoryConfig
	default:
		return CategorySystem
	}
}
