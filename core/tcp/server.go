// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcp

import (
	"context"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/cocowh/iohook/core/iface"
	"github.com/cocowh/iohook/core/utils"
	"github.com/cocowh/iohook/pkg/buffer"
	"github.com/cocowh/iohook/pkg/errors"
	"github.com/cocowh/iohook/pkg/logger"
)

type Server struct {
	mu           sync.RWMutex
	listener     *Listener
	network      string
	addr         string
	eventHandler iface.EventHandler
	ctx          context.Context
	cancel       context.CancelFunc
	opts         *ServerOptions
	conns        map[string]*Stream
	wg           sync.WaitGroup
}

type ServerOptions struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxConnections int
	ReusePort      bool
	ReadBufferSize int
}

func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   5 * time.Second,
		MaxConnections: 1000,
		ReusePort:      false,
		ReadBufferSize: buffer.StreamSize,
	}
}

func NewServer(network, addr string, opts *ServerOptions) *Server {
	if opts == nil {
		opts = NewServerOptions()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		network: network,
		addr:    addr,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[string]*Stream),
	}
}

func (s *Server) SetEventHandler(handler iface.EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventHandler = handler
}

func (s *Server) handler() iface.EventHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eventHandler
}

func (s *Server) Start() error {
	select {
	case <-s.ctx.Done():
		return errors.ErrServerClosed
	default:
	}

	ln, err := Listen(s.ctx, s.network, s.addr, &ListenOptions{ReusePort: s.opts.ReusePort})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logger.Infof("TCP server started on %s", ln.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Stop() error {
	s.cancel()

	var err error
	s.mu.Lock()
	if s.listener != nil {
		if cerr := s.listener.Close(); cerr != nil && !errors.IsClosed(cerr) {
			err = multierr.Append(err, cerr)
		}
	}
	conns := make([]*Stream, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		if cerr := conn.Close(); cerr != nil && !errors.IsClosed(cerr) {
			err = multierr.Append(err, cerr)
		}
	}

	s.wg.Wait()
	logger.Infof("TCP server stopped")
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	defer utils.PanicHandler(func() {
		logger.Errorf("TCP server accept loop panic, stack: %s", string(debug.Stack()))
		go s.Stop()
	})

	for {
		conn, err := s.listener.AcceptStream()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.IsTemporaryError(err) {
				logger.Warnf("Temporary accept error: %v", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
			logger.Errorf("Failed to accept connection: %v", err)
			return
		}

		s.mu.Lock()
		// Stop cancels before it snapshots conns, so anything accepted after
		// that snapshot is closed here.
		if s.ctx.Err() != nil {
			s.mu.Unlock()
			conn.Close()
			return
		}
		if s.opts.MaxConnections > 0 && len(s.conns) >= s.opts.MaxConnections {
			s.mu.Unlock()
			conn.Close()
			logger.Warnf("Too many connections, rejecting %s", conn.RemoteAddr().String())
			continue
		}
		s.conns[conn.ID()] = conn
		s.mu.Unlock()

		conn.SetTimeouts(s.opts.ReadTimeout, s.opts.WriteTimeout)
		logger.Debugf("New connection %s established from %s", conn.ID(), conn.RemoteAddr().String())

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn *Stream) {
	defer s.wg.Done()
	defer s.closeConn(conn)
	defer utils.PanicHandler(func() {
		logger.Errorf("TCP connection %s panic, stack: %s", conn.ID(), string(debug.Stack()))
	})

	h := s.handler()
	if h != nil {
		h.OnConnect(conn)
	}

	bufp := buffer.Acquire(s.opts.ReadBufferSize)
	defer buffer.Release(bufp)
	buf := *bufp

	for {
		n, err := conn.Read(buf)
		if n > 0 && h != nil {
			data := make([]byte, n)
			copy(data, buf[:n])
			h.OnMessage(conn, data)
		}
		if err != nil {
			if !conn.IsClosed() && !errors.IsClosed(err) && h != nil {
				h.OnError(conn, errors.Convert(err))
			}
			return
		}
	}
}

func (s *Server) closeConn(conn *Stream) {
	s.mu.Lock()
	_, tracked := s.conns[conn.ID()]
	delete(s.conns, conn.ID())
	s.mu.Unlock()

	conn.Close()
	if tracked {
		if h := s.handler(); h != nil {
			h.OnClose(conn)
		}
	}
	logger.Debugf("Connection %s closed", conn.ID())
}

func (s *Server) GetConnection(id string) (iface.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, exists := s.conns[id]
	if !exists {
		return nil, false
	}
	return conn, true
}

// ConnectionCount returns the number of live connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// RemoveConnection closes the connection; its read loop then reports OnClose.
func (s *Server) RemoveConnection(id string) {
	s.mu.RLock()
	conn, exists := s.conns[id]
	s.mu.RUnlock()
	if !exists {
		logger.Warnf("Attempted to remove non-existent connection, id: %s", id)
		return
	}

	conn.Close()
	logger.Infof("Connection removed and closed, id: %s", id)
}
