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
	"syscall"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := NetworkError(ErrCodeNetworkRefused, "dial failed")
	if got, want := err.Error(), "[network:2003] dial failed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := err.WithCause(io.ErrUnexpectedEOF)
	if got, want := wrapped.Error(), "[network:2003] dial failed: unexpected EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if err.Cause != nil {
		t.Error("WithCause mutated the receiver")
	}
}

func TestSentinelMatching(t *testing.T) {
	err := fmt.Errorf("send: %w", ErrClientClosed.WithCause(context.Canceled))
	if !errors.Is(err, ErrClientClosed) {
		t.Error("errors.Is(err, ErrClientClosed) = false, want true")
	}
	if errors.Is(err, ErrServerClosed) {
		t.Error("errors.Is(err, ErrServerClosed) = true, want false")
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("cause not reachable through Unwrap")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
	}{
		{"eof", io.EOF, ErrCodeNetworkConnectionClosed},
		{"net closed", &net.OpError{Op: "read", Err: net.ErrClosed}, ErrCodeNetworkConnectionClosed},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ErrCodeNetworkRefused},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, ErrCodeNetworkConnectionLost},
		{"deadline", context.DeadlineExceeded, ErrCodeNetworkTimeout},
		{"timeout", timeoutErr{}, ErrCodeNetworkTimeout},
		{"plain", errors.New("boom"), ErrCodeSystemUnknown},
		{"already", ErrTooManyConnections, ErrCodeNetworkTooManyConns},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Convert(tt.err)
			if got.Code != tt.code {
				t.Errorf("Convert(%v).Code = %d, want %d", tt.err, got.Code, tt.code)
			}
			if GetErrorCategory(got.Code) != got.Category {
				t.Errorf("category %s does not match code %d", got.Category, got.Code)
			}
		})
	}
	if Convert(nil) != nil {
		t.Error("Convert(nil) != nil")
	}
}

func TestPredicates(t *testing.T) {
	if !IsTimeout(timeoutErr{}) {
		t.Error("IsTimeout(timeoutErr) = false")
	}
	if !IsTemporaryError(syscall.ECONNABORTED) {
		t.Error("IsTemporaryError(ECONNABORTED) = false")
	}
	if IsTemporaryError(nil) {
		t.Error("IsTemporaryError(nil) = true")
	}
	if !IsClosed(io.EOF) {
		t.Error("IsClosed(EOF) = false")
	}
	if IsRetryable(ErrClientClosed) {
		t.Error("IsRetryable(ErrClientClosed) = true")
	}
	if !IsRetryable(syscall.ECONNREFUSED) {
		t.Error("IsRetryable(ECONNREFUSED) = false")
	}
}

func TestPanicError(t *testing.T) {
	e := PanicError("kaboom")
	if e.Code != ErrCodeSystemPanic {
		t.Errorf("Code = %d, want %d", e.Code, ErrCodeSystemPanic)
	}
	cause := errors.New("inner")
	if !errors.Is(PanicError(cause), cause) {
		t.Error("PanicError(error) does not wrap the value")
	}
}
