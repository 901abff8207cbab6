// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udp

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cocowh/iohook/core/iface"
	"github.com/cocowh/iohook/core/utils"
	"github.com/cocowh/iohook/pkg/buffer"
	"github.com/cocowh/iohook/pkg/errors"
	"github.com/cocowh/iohook/pkg/logger"
)

var _ iface.Client = (*Client)(nil)

type Client struct {
	mu           sync.Mutex
	socket       *Socket
	network      string
	remoteAddr   string
	eventHandler iface.EventHandler
	ctx          context.Context
	cancel       context.CancelFunc
	opts         *ClientOptions
	wg           sync.WaitGroup
}

type ClientOptions struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func NewClientOptions() *ClientOptions {
	return &ClientOptions{
		ReadTimeout:  time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func NewClient(network, remoteAddr string, opts *ClientOptions) *Client {
	if opts == nil {
		opts = NewClientOptions()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		network:    network,
		remoteAddr: remoteAddr,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connect(ctx)
}

func (c *Client) connect(ctx context.Context) error {
	select {
	case <-c.ctx.Done():
		return errors.ErrClientClosed
	default:
	}
	if c.socket != nil {
		return nil
	}

	socket, err := Dial(ctx, c.network, c.remoteAddr)
	if err != nil {
		return err
	}
	c.socket = socket

	if h := c.eventHandler; h != nil {
		h.OnConnect(socket)
		c.wg.Add(1)
		go c.recvLoop(socket, h)
	}

	logger.Infof("UDP client %s connected to %s", socket.LocalAddr().String(), c.remoteAddr)
	return nil
}

func (c *Client) Send(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(c.ctx); err != nil {
		return 0, err
	}

	if c.opts.WriteTimeout > 0 {
		c.socket.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}

	n, err := c.socket.Write(data)
	if err != nil {
		logger.Errorf("Failed to send data: %v", err)
		return n, err
	}
	return n, nil
}

// Socket returns the connected socket, or nil before Connect.
func (c *Client) Socket() *Socket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socket
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.cancel()
	var err error
	if c.socket != nil {
		err = c.socket.Close()
	}
	c.mu.Unlock()

	c.wg.Wait()
	logger.Infof("UDP client closed")
	return err
}

func (c *Client) SetEventHandler(handler iface.EventHandler) {
	c.mu.Lock()
	c.eventHandler = handler
	c.mu.Unlock()
}

func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) recvLoop(socket *Socket, h iface.EventHandler) {
	defer c.wg.Done()
	defer h.OnClose(socket)
	defer utils.PanicHandler(func() {
		logger.Errorf("UDP client recv loop panic, stack: %s", string(debug.Stack()))
	})

	bufp := buffer.Acquire(buffer.DatagramSize)
	defer buffer.Release(bufp)
	buf := *bufp

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if c.opts.ReadTimeout > 0 {
			socket.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		}

		n, err := socket.Read(buf)
		if err != nil {
			if errors.IsTimeout(err) {
				continue
			}
			if socket.IsClosed() || errors.IsClosed(err) {
				return
			}
			h.OnError(socket, errors.Convert(err))
			// ICMP port unreachable surfaces as a refused read on connected sockets
			if errors.IsTemporaryError(err) {
				continue
			}
			return
		}

		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			h.OnMessage(socket, data)
		}
	}
}
