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

	"github.com/cocowh/iohook/core/iface"
	"github.com/cocowh/iohook/core/utils"
	"github.com/cocowh/iohook/pkg/buffer"
	"github.com/cocowh/iohook/pkg/errors"
	"github.com/cocowh/iohook/pkg/logger"
)

var (
	_ iface.Client     = (*Client)(nil)
	_ iface.Server     = (*Server)(nil)
	_ iface.Connection = (*Stream)(nil)
	_ net.Conn         = (*Stream)(nil)
	_ net.Listener     = (*Listener)(nil)
)

type Client struct {
	mu           sync.Mutex
	conn         *Stream
	addr         string
	network      string
	eventHandler iface.EventHandler
	ctx          context.Context
	cancel       context.CancelFunc
	opts         *ClientOptions
	wg           sync.WaitGroup
}

type ClientOptions struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Reconnect      bool
	ReconnectDelay time.Duration
	MaxRetries     int
}

func NewClientOptions() *ClientOptions {
	return &ClientOptions{
		ConnectTimeout: 5 * time.Second,
		WriteTimeout:   5 * time.Second,
		Reconnect:      true,
		ReconnectDelay: 2 * time.Second,
		MaxRetries:     3,
	}
}

func NewClient(network, addr string, opts *ClientOptions) *Client {
	if opts == nil {
		opts = NewClientOptions()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		network: network,
		addr:    addr,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetEventHandler must be called before Connect for the handler to receive
// messages; the receive loop only runs when a handler is set.
func (c *Client) SetEventHandler(handler iface.EventHandler) {
	c.mu.Lock()
	c.eventHandler = handler
	c.mu.Unlock()
}

func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() {
		return nil
	}
	return c.connect(ctx)
}

func (c *Client) connect(ctx context.Context) error {
	var conn *Stream
	var err error
	var retries int

	for {
		select {
		case <-c.ctx.Done():
			return errors.ErrClientClosed
		default:
		}

		dialCtx, cancel := ctx, context.CancelFunc(func() {})
		if c.opts.ConnectTimeout > 0 {
			dialCtx, cancel = context.WithTimeout(ctx, c.opts.ConnectTimeout)
		}
		conn, err = Dial(dialCtx, c.network, c.addr)
		cancel()
		if err == nil {
			break
		}
		logger.Errorf("Failed to connect to %s: %v", c.addr, err)

		if !c.opts.Reconnect || (c.opts.MaxRetries > 0 && retries >= c.opts.MaxRetries) {
			return err
		}

		retries++
		select {
		case <-time.After(c.opts.ReconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		case <-c.ctx.Done():
			return errors.ErrClientClosed
		}
	}

	conn.SetTimeouts(c.opts.ReadTimeout, c.opts.WriteTimeout)
	c.conn = conn

	if h := c.eventHandler; h != nil {
		h.OnConnect(conn)
		c.wg.Add(1)
		go c.recvLoop(conn, h)
	}

	logger.Infof("Connected to %s successfully", c.addr)
	return nil
}

func (c *Client) recvLoop(conn *Stream, h iface.EventHandler) {
	defer c.wg.Done()
	defer utils.PanicHandler(func() {
		logger.Errorf("TCP client recv loop panic, stack: %s", string(debug.Stack()))
		conn.Close()
	})

	bufp := buffer.Acquire(buffer.StreamSize)
	defer buffer.Release(bufp)
	buf := *bufp

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			h.OnMessage(conn, data)
		}
		if err != nil {
			if !conn.IsClosed() && !errors.IsClosed(err) {
				h.OnError(conn, errors.Convert(err))
			}
			conn.Close()
			h.OnClose(conn)
			return
		}
	}
}

// Send writes data, dialing first when there is no live connection.
func (c *Client) Send(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn.IsClosed() {
		if err := c.connect(c.ctx); err != nil {
			return 0, err
		}
	}
	return c.conn.Write(data)
}

// Conn returns the current stream, or nil.
func (c *Client) Conn() *Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.cancel()
	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	return err
}
