// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udp

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

var _ iface.Server = (*Server)(nil)

type Server struct {
	mu           sync.RWMutex
	socket       *Socket
	network      string
	addr         string
	eventHandler iface.EventHandler
	ctx          context.Context
	cancel       context.CancelFunc
	opts         *ServerOptions
	conns        map[string]*peer
	wg           sync.WaitGroup
}

type ServerOptions struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxConnections int
	ReusePort      bool
}

func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		ReadTimeout:    time.Second,
		WriteTimeout:   5 * time.Second,
		MaxConnections: 1000,
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
		conns:   make(map[string]*peer),
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

	socket, err := Listen(s.ctx, s.network, s.addr, &ListenOptions{ReusePort: s.opts.ReusePort})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.socket = socket
	s.mu.Unlock()

	logger.Infof("UDP server started on %s", socket.LocalAddr().String())

	s.wg.Add(1)
	go s.recvLoop()

	return nil
}

func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.socket == nil {
		return nil
	}
	return s.socket.LocalAddr()
}

func (s *Server) Stop() error {
	s.cancel()

	var err error
	s.mu.Lock()
	if s.socket != nil {
		err = multierr.Append(err, s.socket.Close())
	}
	peers := s.conns
	s.conns = make(map[string]*peer)
	s.mu.Unlock()

	s.wg.Wait()

	h := s.handler()
	for _, p := range peers {
		err = multierr.Append(err, p.Close())
		if h != nil {
			h.OnClose(p)
		}
	}

	logger.Infof("UDP server stopped")
	return err
}

func (s *Server) recvLoop() {
	defer s.wg.Done()
	defer utils.PanicHandler(func() {
		logger.Errorf("UDP server recv loop panic, stack: %s", string(debug.Stack()))
		go s.Stop()
	})

	bufp := buffer.Acquire(buffer.DatagramSize)
	defer buffer.Release(bufp)
	buf := *bufp

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if s.opts.ReadTimeout > 0 {
			s.socket.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		}

		n, remoteAddr, err := s.socket.ReadFromUDP(buf)
		if err != nil {
			if errors.IsTimeout(err) {
				continue
			}
			if s.socket.IsClosed() || errors.IsClosed(err) {
				return
			}
			if errors.IsTemporaryError(err) {
				continue
			}
			logger.Errorf("Failed to read data: %v", err)
			return
		}

		p, ok := s.peerFor(remoteAddr)
		if !ok {
			if s.ctx.Err() != nil {
				return
			}
			logger.Warnf("Too many connections, dropping packet from %s", remoteAddr.String())
			continue
		}

		if h := s.handler(); h != nil && n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			h.OnMessage(p, data)
		}
	}
}

func (s *Server) peerFor(addr *net.UDPAddr) (*peer, bool) {
	id := addr.String()

	s.mu.RLock()
	p, exists := s.conns[id]
	s.mu.RUnlock()
	if exists {
		return p, true
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return nil, false
	}
	if p, exists = s.conns[id]; exists {
		s.mu.Unlock()
		return p, true
	}
	if s.opts.MaxConnections > 0 && len(s.conns) >= s.opts.MaxConnections {
		s.mu.Unlock()
		return nil, false
	}
	p = newPeer(id, s.socket, addr, s.opts.WriteTimeout)
	s.conns[id] = p
	h := s.eventHandler
	s.mu.Unlock()

	logger.Debugf("New UDP peer %s", id)
	if h != nil {
		h.OnConnect(p)
	}
	return p, true
}

func (s *Server) GetConnection(id string) (iface.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.conns[id]
	if !exists {
		return nil, false
	}
	return p, true
}

func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// RemoveConnection forgets a peer; a later datagram from it creates a new one.
func (s *Server) RemoveConnection(id string) {
	s.mu.Lock()
	p, exists := s.conns[id]
	delete(s.conns, id)
	h := s.eventHandler
	s.mu.Unlock()

	if !exists {
		logger.Warnf("Attempted to remove non-existent UDP connection: %s", id)
		return
	}
	p.Close()
	if h != nil {
		h.OnClose(p)
	}
	logger.Infof("UDP connection removed: %s", id)
}
