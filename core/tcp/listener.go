// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcp

import (
	"context"
	"net"
	"time"

	"github.com/cocowh/iohook/internal/sockopt"
	"github.com/cocowh/iohook/pkg/errors"
)

type ListenOptions struct {
	ReusePort bool
	KeepAlive time.Duration
}

// Listener accepts hooked streams.
type Listener struct {
	ln net.Listener
}

func Listen(ctx context.Context, network, addr string, opts *ListenOptions) (*Listener, error) {
	if opts == nil {
		opts = &ListenOptions{}
	}
	lc := net.ListenConfig{KeepAlive: opts.KeepAlive}
	if opts.ReusePort {
		lc.Control = sockopt.ReusePort
	}
	ln, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return nil, errors.Convert(err).WithContext("addr", addr)
	}
	return &Listener{ln: ln}, nil
}

// NewListener wraps an existing listener.
func NewListener(ln net.Listener) *Listener {
	return &Listener{ln: ln}
}

func (l *Listener) AcceptStream() (*Stream, error) {
	c, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return NewStream(c), nil
}

// Accept implements net.Listener.
func (l *Listener) Accept() (net.Conn, error) {
	s, err := l.AcceptStream()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (l *Listener) Close() error {
	return l.ln.Close()
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}
