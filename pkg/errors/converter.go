// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

func SystemError(code ErrorCode, message string) *Error {
	return New(code, CategorySystem, LevelError, message)
}

func SystemErrorf(code ErrorCode, format string, args ...any) *Error {
	return Newf(code, CategorySystem, LevelError, format, args...)
}

func NetworkError(code ErrorCode, message string) *Error {
	return New(code, CategoryNetwork, LevelError, message)
}

func NetworkErrorf(code ErrorCode, format string, args ...any) *Error {
	return Newf(code, CategoryNetwork, LevelError, format, args...)
}

func ConfigError(code ErrorCode, message string) *Error {
	return New(code, CategoryConfig, LevelError, message)
}

func ConfigErrorf(code ErrorCode, format string, args ...any) *Error {
	return Newf(code, CategoryConfig, LevelError, format, args...)
}

// PanicError wraps a recovered panic value.
func PanicError(v any) *Error {
	if err, ok := v.(error); ok {
		return Wrap(err, ErrCodeSystemPanic, CategorySystem, LevelError, "panic recovered")
	}
	return SystemErrorf(ErrCodeSystemPanic, "panic recovered: %v", v)
}

// Convert maps an arbitrary error onto *Error, classifying net and os
// failures into network codes. A nil error converts to nil.
func Convert(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return Wrap(err, ErrCodeNetworkTimeout, CategoryNetwork, LevelWarn, "network operation timeout")
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.EOF):
		return Wrap(err, ErrCodeNetworkConnectionClosed, CategoryNetwork, LevelInfo, "connection closed")
	case errors.Is(err, syscall.ECONNREFUSED):
		return Wrap(err, ErrCodeNetworkRefused, CategoryNetwork, LevelError, "connection refused")
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return Wrap(err, ErrCodeNetworkConnectionLost, CategoryNetwork, LevelError, "connection lost")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Wrap(err, ErrCodeNetworkTimeout, CategoryNetwork, LevelWarn, "network operation timeout")
		}
		return Wrap(err, ErrCodeNetworkUnknown, CategoryNetwork, LevelError, "network error")
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Wrap(err, ErrCodeNetworkUnreachable, CategoryNetwork, LevelError, fmt.Sprintf("resolve %s", dnsErr.Name))
	}

	return Wrap(err, ErrCodeSystemUnknown, CategorySystem, LevelError, "unknown error")
}

func IsTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	e := Convert(err)
	return e != nil && e.Code == ErrCodeNetworkTimeout
}

func IsNetworkError(err error) bool {
	e := Convert(err)
	return e != nil && e.Category == CategoryNetwork
}

// IsClosed reports whether err means the socket is gone for good.
func IsClosed(err error) bool {
	e := Convert(err)
	return e != nil && (e.Code == ErrCodeNetworkConnectionClosed || e.Code == ErrCodeNetworkConnectionLost)
}

// IsTemporaryError reports whether an accept or read loop may continue
// after err.
func IsTemporaryError(err error) bool {
	if err == nil {
		return false
	}
	if IsTimeout(err) {
		return true
	}
	return errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

func IsRetryable(err error) bool {
	e := Convert(err)
	if e == nil {
		return false
	}
	return e.Category == CategoryNetwork && e.Code != ErrCodeNetworkClientClosed && e.Code != ErrCodeNetworkServerClosed
}
