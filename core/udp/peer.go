// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/cocowh/iohook/core/iface"
	"github.com/cocowh/iohook/pkg/errors"
)

var _ iface.Connection = (*peer)(nil)

// errPeerRead is returned by peer.Read: datagrams reach a server peer only
// through EventHandler.OnMessage.
var errPeerRead = errors.NetworkError(errors.ErrCodeNetworkUnknown, "read on udp server peer, use OnMessage")

// peer is the server-side view of one remote address sharing the server
// socket. Closing a peer never closes the socket.
type peer struct {
	id           string
	socket       *Socket
	remote       *net.UDPAddr
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func newPeer(id string, socket *Socket, remote *net.UDPAddr, writeTimeout time.Duration) *peer {
	ctx, cancel := context.WithCancel(socket.Context())
	return &peer{
		id:           id,
		socket:       socket,
		remote:       remote,
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (p *peer) ID() string {
	return p.id
}

func (p *peer) RemoteAddr() net.Addr {
	return p.remote
}

func (p *peer) LocalAddr() net.Addr {
	return p.socket.LocalAddr()
}

func (p *peer) Read(b []byte) (int, error) {
	return 0, errPeerRead
}

func (p *peer) Write(b []byte) (int, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, errors.ErrConnectionClosed
	}

	if p.writeTimeout > 0 {
		p.socket.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	}
	return p.socket.WriteToUDP(b, p.remote)
}

func (p *peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.cancel()
	}
	return nil
}

func (p *peer) Context() context.Context {
	return p.ctx
}
