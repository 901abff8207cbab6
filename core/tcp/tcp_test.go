// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcp

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cocowh/iohook/core/iface"
	"github.com/cocowh/iohook/core/iohook"
)

func registerCounter(t *testing.T) *iohook.Counter {
	t.Helper()
	c := iohook.NewCounter()
	iohook.Init(c)
	t.Cleanup(func() { iohook.Init(nil) })
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStreamReportsTransfers(t *testing.T) {
	ln, err := Listen(context.Background(), "tcp", "127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	counter := registerCounter(t)

	accepted := make(chan *Stream, 1)
	go func() {
		s, err := ln.AcceptStream()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- s
	}()

	client, err := Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	server := <-accepted
	if server == nil {
		t.Fatal("accept failed")
	}
	defer server.Close()

	payload := []byte("0123456789")
	if _, err := client.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := make([]byte, len(payload))
	if _, err := io.ReadFull(server, got); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("read %q, want %q", got, payload)
	}

	s := counter.Snapshot()
	if s.WriteEvents != 1 || s.WriteBytes != 10 {
		t.Errorf("writes = %d (%dB), want 1 (10B)", s.WriteEvents, s.WriteBytes)
	}
	if s.ReadBytes != 10 || s.ReadEvents < 1 {
		t.Errorf("reads = %d (%dB), want >=1 (10B)", s.ReadEvents, s.ReadBytes)
	}

	// zero-length write is still a successful transfer
	if _, err := client.Write(nil); err != nil {
		t.Fatalf("Write(nil): %v", err)
	}
	if s2 := counter.Snapshot(); s2.WriteEvents != 2 || s2.WriteBytes != 10 {
		t.Errorf("after empty write = %v", s2)
	}
}

func TestStreamFailedReadNotReported(t *testing.T) {
	a, b := net.Pipe()
	s := NewStream(a)
	b.Close()

	counter := registerCounter(t)
	if _, err := s.Read(make([]byte, 8)); err == nil {
		t.Fatal("Read on closed pipe succeeded")
	}
	if got := counter.Snapshot(); got.ReadEvents != 0 {
		t.Errorf("failed read reported: %v", got)
	}

	if err := s.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	select {
	case <-s.Context().Done():
	default:
		t.Error("context not cancelled after Close")
	}
}

func TestPanickingHookDoesNotBreakIO(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	sa, sb := NewStream(a), NewStream(b)

	iohook.Init(iohook.HookFuncs{Read: func(uint64) { panic("hook failure") }})
	defer iohook.Init(nil)

	go sa.Write([]byte("ping"))
	buf := make([]byte, 4)
	n, err := io.ReadFull(sb, buf)
	if err != nil || n != 4 || string(buf) != "ping" {
		t.Fatalf("ReadFull = %d, %v (%q); want 4, nil, ping", n, err, buf)
	}
}

type recorder struct {
	mu       sync.Mutex
	connects int
	closes   int
	errs     []error
	data     bytes.Buffer
}

func (r *recorder) handler(echo bool) iface.EventHandler {
	return iface.EventHandlerFuncs{
		Connect: func(iface.Connection) {
			r.mu.Lock()
			r.connects++
			r.mu.Unlock()
		},
		Message: func(conn iface.Connection, data []byte) {
			r.mu.Lock()
			r.data.Write(data)
			r.mu.Unlock()
			if echo {
				conn.Write(data)
			}
		},
		Close: func(iface.Connection) {
			r.mu.Lock()
			r.closes++
			r.mu.Unlock()
		},
		Error: func(_ iface.Connection, err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() (int, int, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects, r.closes, r.data.String()
}

func TestServerEchoAndLifecycle(t *testing.T) {
	counter := registerCounter(t)

	rec := &recorder{}
	srv := NewServer("tcp", "127.0.0.1:0", nil)
	srv.SetEventHandler(rec.handler(true))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	client := NewClient("tcp", srv.Addr().String(), &ClientOptions{ConnectTimeout: time.Second})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if _, err := client.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	reply := make([]byte, 5)
	if _, err := io.ReadFull(client.Conn(), reply); err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if string(reply) != "hello" {
		t.Errorf("echo = %q, want hello", reply)
	}

	// client write, server read, server write, client read
	waitFor(t, "hook totals", func() bool {
		s := counter.Snapshot()
		return s.WriteBytes == 10 && s.ReadBytes == 10
	})

	waitFor(t, "connection tracked", func() bool { return srv.ConnectionCount() == 1 })
	if err := client.Close(); err != nil {
		t.Errorf("client Close: %v", err)
	}
	waitFor(t, "server close callback", func() bool {
		_, closes, _ := rec.snapshot()
		return closes == 1
	})

	connects, _, data := rec.snapshot()
	if connects != 1 {
		t.Errorf("connects = %d, want 1", connects)
	}
	if data != "hello" {
		t.Errorf("server saw %q, want hello", data)
	}
	if srv.ConnectionCount() != 0 {
		t.Errorf("ConnectionCount = %d after close, want 0", srv.ConnectionCount())
	}
}

func TestServerMaxConnections(t *testing.T) {
	opts := NewServerOptions()
	opts.MaxConnections = 1
	srv := NewServer("tcp", "127.0.0.1:0", opts)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	first, err := Dial(context.Background(), "tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer first.Close()
	waitFor(t, "first connection", func() bool { return srv.ConnectionCount() == 1 })

	second, err := Dial(context.Background(), "tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer second.Close()

	second.SetTimeouts(2*time.Second, 0)
	if _, err := second.Read(make([]byte, 1)); err == nil {
		t.Error("rejected connection still readable")
	}
	if srv.ConnectionCount() != 1 {
		t.Errorf("ConnectionCount = %d, want 1", srv.ConnectionCount())
	}
}

func TestServerRemoveAndStop(t *testing.T) {
	rec := &recorder{}
	srv := NewServer("tcp", "127.0.0.1:0", nil)
	srv.SetEventHandler(rec.handler(false))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var clients []*Stream
	for i := 0; i < 3; i++ {
		c, err := Dial(context.Background(), "tcp", srv.Addr().String())
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		defer c.Close()
		clients = append(clients, c)
	}
	waitFor(t, "three connections", func() bool { return srv.ConnectionCount() == 3 })

	var id string
	srv.mu.RLock()
	for k := range srv.conns {
		id = k
		break
	}
	srv.mu.RUnlock()
	if _, ok := srv.GetConnection(id); !ok {
		t.Fatalf("GetConnection(%s) missing", id)
	}
	srv.RemoveConnection(id)
	waitFor(t, "removal", func() bool { return srv.ConnectionCount() == 2 })
	srv.RemoveConnection("does-not-exist")

	if err := srv.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	_, closes, _ := rec.snapshot()
	if closes != 3 {
		t.Errorf("closes = %d, want 3", closes)
	}
	if err := srv.Start(); err == nil {
		t.Error("Start after Stop succeeded")
	}
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := NewClient("tcp", addr, &ClientOptions{
		ConnectTimeout: 200 * time.Millisecond,
		Reconnect:      true,
		ReconnectDelay: 10 * time.Millisecond,
		MaxRetries:     2,
	})
	defer c.Close()
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("Connect to closed port succeeded")
	}
}

func TestServerStopDuringAccepts(t *testing.T) {
	for i := 0; i < 50; i++ {
		rec := &recorder{}
		opts := NewServerOptions()
		opts.ReadTimeout = 0
		srv := NewServer("tcp", "127.0.0.1:0", opts)
		srv.SetEventHandler(rec.handler(false))
		if err := srv.Start(); err != nil {
			t.Fatalf("round %d: Start: %v", i, err)
		}
		addr := srv.Addr().String()

		var wg sync.WaitGroup
		for j := 0; j < 20; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c, err := net.DialTimeout("tcp", addr, time.Second)
				if err == nil {
					defer c.Close()
					c.SetReadDeadline(time.Now().Add(3 * time.Second))
					c.Read(make([]byte, 1))
				}
			}()
		}

		done := make(chan struct{})
		go func() {
			srv.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("round %d: Stop did not return with %d live connections", i, srv.ConnectionCount())
		}
		wg.Wait()

		if n := srv.ConnectionCount(); n != 0 {
			t.Errorf("round %d: ConnectionCount = %d after Stop, want 0", i, n)
		}
		if connects, closes, _ := rec.snapshot(); connects != closes {
			t.Errorf("round %d: connects = %d, closes = %d", i, connects, closes)
		}
	}
}

func TestStreamHidesUnderlyingConn(t *testing.T) {
	a, b := net.Pipe()
	sa, sb := NewStream(a), NewStream(b)
	defer sa.Close()
	defer sb.Close()

	if sa.LocalAddr() == nil || sa.RemoteAddr() == nil {
		t.Error("addresses not forwarded")
	}
	if err := sb.SetDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatalf("SetDeadline: %v", err)
	}

	counter := registerCounter(t)

	// io.Copy only sees the Stream, so the copy path is reported too
	go func() {
		io.Copy(sa, bytes.NewReader([]byte("copied")))
		sa.Close()
	}()
	got, err := io.ReadAll(sb)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "copied" {
		t.Fatalf("ReadAll = %q, want copied", got)
	}

	s := counter.Snapshot()
	if s.WriteBytes != 6 || s.ReadBytes != 6 {
		t.Errorf("totals = %v, want 6B each way", s)
	}
}
