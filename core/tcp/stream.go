// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cocowh/iohook/core/iohook"
	"github.com/cocowh/iohook/pkg/errors"
)

// Stream is a TCP connection whose reads and writes are reported to the
// registered io hook. It implements net.Conn and iface.Connection. The
// underlying connection is not exposed so every transfer goes through Read
// and Write.
type Stream struct {
	conn net.Conn

	id     string
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	closed       bool
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewStream wraps an established connection.
func NewStream(c net.Conn) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		conn:   c,
		id:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Dial connects to addr and wraps the result.
func Dial(ctx context.Context, network, addr string) (*Stream, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, errors.Convert(err).WithContext("addr", addr)
	}
	return NewStream(c), nil
}

func (s *Stream) ID() string {
	return s.id
}

// Context is cancelled when the stream is closed.
func (s *Stream) Context() context.Context {
	return s.ctx
}

// SetTimeouts arms a fresh deadline before every Read or Write. Zero disables.
func (s *Stream) SetTimeouts(read, write time.Duration) {
	s.mu.Lock()
	s.readTimeout = read
	s.writeTimeout = write
	s.mu.Unlock()
}

func (s *Stream) timeouts() (time.Duration, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readTimeout, s.writeTimeout
}

func (s *Stream) Read(b []byte) (int, error) {
	if rt, _ := s.timeouts(); rt > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(rt)); err != nil {
			return 0, err
		}
	}
	n, err := s.conn.Read(b)
	if n > 0 || err == nil {
		iohook.NotifyRead(n)
	}
	return n, err
}

func (s *Stream) Write(b []byte) (int, error) {
	if _, wt := s.timeouts(); wt > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(wt)); err != nil {
			return 0, err
		}
	}
	n, err := s.conn.Write(b)
	if n > 0 || err == nil {
		iohook.NotifyWrite(n)
	}
	return n, err
}

// CloseWrite shuts down the sending side when the peer is a *net.TCPConn.
func (s *Stream) CloseWrite() error {
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

// Close closes the connection once; later calls return nil.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	s.mu.Unlock()

	return s.conn.Close()
}

func (s *Stream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Stream) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *Stream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *Stream) SetDeadline(t time.Time) error {
	return s.conn.SetDeadline(t)
}

func (s *Stream) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

func (s *Stream) SetWriteDeadline(t time.Time) error {
	return s.conn.SetWriteDeadline(t)
}
