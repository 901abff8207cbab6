// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zapcore"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(t *testing.T, level Level) (*zapLoggerWrapper, *lockedBuffer) {
	t.Helper()
	out := &lockedBuffer{}
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.EnableStdout = false
	l, err := newZapLogger(cfg, zapcore.AddSync(out))
	if err != nil {
		t.Fatalf("newZapLogger: %v", err)
	}
	return l, out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"trace", TraceLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warning", WarnLevel},
		{" error ", ErrorLevel},
		{"fatal", FatalLevel},
		{"bogus", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestZapLoggerLevelFilter(t *testing.T) {
	l, out := newTestLogger(t, WarnLevel)
	l.Infof("hidden %d", 1)
	l.Warnf("shown %d", 2)

	got := out.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("info line written at warn level: %q", got)
	}
	if !strings.Contains(got, "shown 2") {
		t.Errorf("warn line missing: %q", got)
	}

	l.SetLevel(DebugLevel)
	l.Debugf("now visible")
	if !strings.Contains(out.String(), "now visible") {
		t.Errorf("debug line missing after SetLevel")
	}
}

func TestPackageFacadeFansOut(t *testing.T) {
	a, outA := newTestLogger(t, InfoLevel)
	b, outB := newTestLogger(t, InfoLevel)
	SetLoggers(a, b)
	defer SetLoggers()

	Infof("hello %s", "both")
	for name, out := range map[string]*lockedBuffer{"a": outA, "b": outB} {
		if !strings.Contains(out.String(), "hello both") {
			t.Errorf("logger %s missed message: %q", name, out.String())
		}
	}
}

func TestAsyncLoggerFlushesOnStop(t *testing.T) {
	base, out := newTestLogger(t, DebugLevel)
	async := NewAsyncLogger(base, 4)
	for i := 0; i < 3; i++ {
		async.Infof("event %d", i)
	}
	async.Stop()
	async.Stop()

	for i := 0; i < 3; i++ {
		want := "event " + string(rune('0'+i))
		if !strings.Contains(out.String(), want) {
			t.Errorf("missing %q in %q", want, out.String())
		}
	}
}
