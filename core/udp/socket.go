// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cocowh/iohook/core/iohook"
	"github.com/cocowh/iohook/internal/sockopt"
	"github.com/cocowh/iohook/pkg/errors"
)

var (
	_ net.PacketConn = (*Socket)(nil)
	_ net.Conn       = (*Socket)(nil)
)

type ListenOptions struct {
	ReusePort bool
}

// Socket is a UDP socket whose sends and receives are reported to the
// registered io hook. Only the methods below are exposed so that no transfer
// path bypasses the hook.
type Socket struct {
	conn   *net.UDPConn
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func NewSocket(c *net.UDPConn) *Socket {
	ctx, cancel := context.WithCancel(context.Background())
	return &Socket{
		conn:   c,
		id:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Listen binds an unconnected socket on addr.
func Listen(ctx context.Context, network, addr string, opts *ListenOptions) (*Socket, error) {
	if opts == nil {
		opts = &ListenOptions{}
	}
	var lc net.ListenConfig
	if opts.ReusePort {
		lc.Control = sockopt.ReusePort
	}
	pc, err := lc.ListenPacket(ctx, network, addr)
	if err != nil {
		return nil, errors.Convert(err).WithContext("addr", addr)
	}
	uc, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, errors.NetworkErrorf(errors.ErrCodeNetworkUnknown, "%s is not a udp network", network)
	}
	return NewSocket(uc), nil
}

// Dial returns a socket connected to addr, so Read and Write can be used.
func Dial(ctx context.Context, network, addr string) (*Socket, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, errors.Convert(err).WithContext("addr", addr)
	}
	uc, ok := c.(*net.UDPConn)
	if !ok {
		c.Close()
		return nil, errors.NetworkErrorf(errors.ErrCodeNetworkUnknown, "%s is not a udp network", network)
	}
	return NewSocket(uc), nil
}

func (s *Socket) ID() string {
	return s.id
}

func (s *Socket) Context() context.Context {
	return s.ctx
}

func reportRead(n int, err error) {
	if n > 0 || err == nil {
		iohook.NotifyRead(n)
	}
}

func reportWrite(n int, err error) {
	if n > 0 || err == nil {
		iohook.NotifyWrite(n)
	}
}

func (s *Socket) Read(b []byte) (int, error) {
	n, err := s.conn.Read(b)
	reportRead(n, err)
	return n, err
}

func (s *Socket) Write(b []byte) (int, error) {
	n, err := s.conn.Write(b)
	reportWrite(n, err)
	return n, err
}

func (s *Socket) ReadFrom(b []byte) (int, net.Addr, error) {
	n, addr, err := s.conn.ReadFrom(b)
	reportRead(n, err)
	return n, addr, err
}

func (s *Socket) WriteTo(b []byte, addr net.Addr) (int, error) {
	n, err := s.conn.WriteTo(b, addr)
	reportWrite(n, err)
	return n, err
}

func (s *Socket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	n, addr, err := s.conn.ReadFromUDP(b)
	reportRead(n, err)
	return n, addr, err
}

func (s *Socket) WriteToUDP(b []byte, addr *net.UDPAddr) (int, error) {
	n, err := s.conn.WriteToUDP(b, addr)
	reportWrite(n, err)
	return n, err
}

func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// RemoteAddr is nil for unconnected sockets.
func (s *Socket) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *Socket) SetDeadline(t time.Time) error {
	return s.conn.SetDeadline(t)
}

func (s *Socket) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

func (s *Socket) SetWriteDeadline(t time.Time) error {
	return s.conn.SetWriteDeadline(t)
}

func (s *Socket) Close() error {
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

func (s *Socket) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
