// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iohook

import (
	"fmt"
	"sync/atomic"

	"github.com/cocowh/iohook/pkg/logger"
)

// Stats is a point-in-time copy of a Counter.
type Stats struct {
	ReadEvents  uint64 `json:"read_events" yaml:"read_events"`
	WriteEvents uint64 `json:"write_events" yaml:"write_events"`
	ReadBytes   uint64 `json:"read_bytes" yaml:"read_bytes"`
	WriteBytes  uint64 `json:"write_bytes" yaml:"write_bytes"`
}

func (s Stats) String() string {
	return fmt.Sprintf("reads=%d (%dB) writes=%d (%dB)", s.ReadEvents, s.ReadBytes, s.WriteEvents, s.WriteBytes)
}

// Counter is a Hook that accumulates event and byte totals. It is safe to
// read while registered.
type Counter struct {
	readEvents  atomic.Uint64
	writeEvents atomic.Uint64
	readBytes   atomic.Uint64
	writeBytes  atomic.Uint64
}

func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) OnRead(n uint64) {
	c.readEvents.Add(1)
	c.readBytes.Add(n)
}

func (c *Counter) OnWrite(n uint64) {
	c.writeEvents.Add(1)
	c.writeBytes.Add(n)
}

func (c *Counter) Snapshot() Stats {
	return Stats{
		ReadEvents:  c.readEvents.Load(),
		WriteEvents: c.writeEvents.Load(),
		ReadBytes:   c.readBytes.Load(),
		WriteBytes:  c.writeBytes.Load(),
	}
}

func (c *Counter) Reset() {
	c.readEvents.Store(0)
	c.writeEvents.Store(0)
	c.readBytes.Store(0)
	c.writeBytes.Store(0)
}

// LogHook writes every event to the package logger at debug level.
type LogHook struct {
	Prefix string
}

func (h LogHook) OnRead(n uint64) {
	h.log("read", n)
}

func (h LogHook) OnWrite(n uint64) {
	h.log("write", n)
}

func (h LogHook) log(op string, n uint64) {
	if h.Prefix == "" {
		logger.Debugf("%s %d bytes", op, n)
		return
	}
	logger.Debugf("%s: %s %d bytes", h.Prefix, op, n)
}
