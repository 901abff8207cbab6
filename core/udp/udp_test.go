// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udp

import (
	"context"
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

func TestSocketReportsEveryTransferPath(t *testing.T) {
	a, err := Listen(context.Background(), "udp", "127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer a.Close()
	b, err := Dial(context.Background(), "udp", a.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer b.Close()

	counter := registerCounter(t)
	a.SetReadDeadline(time.Now().Add(2 * time.Second))
	b.SetReadDeadline(time.Now().Add(2 * time.Second))

	// connected Write -> ReadFromUDP
	if _, err := b.Write([]byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, 64)
	n, from, err := a.ReadFromUDP(buf)
	if err != nil || n != 3 {
		t.Fatalf("ReadFromUDP = %d, %v", n, err)
	}

	// WriteToUDP -> Read
	if _, err := a.WriteToUDP([]byte("defg"), from); err != nil {
		t.Fatalf("WriteToUDP: %v", err)
	}
	if n, err := b.Read(buf); err != nil || n != 4 {
		t.Fatalf("Read = %d, %v", n, err)
	}

	// WriteTo -> ReadFrom
	if _, err := a.WriteTo([]byte("hi"), from); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if n, _, err := b.ReadFrom(buf); err != nil || n != 2 {
		t.Fatalf("ReadFrom = %d, %v", n, err)
	}

	want := iohook.Stats{ReadEvents: 3, WriteEvents: 3, ReadBytes: 9, WriteBytes: 9}
	if got := counter.Snapshot(); got != want {
		t.Errorf("stats = %v, want %v", got, want)
	}
}

func TestSocketTimeoutNotReported(t *testing.T) {
	s, err := Listen(context.Background(), "udp", "127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer s.Close()

	counter := registerCounter(t)
	s.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
	if _, _, err := s.ReadFrom(make([]byte, 8)); err == nil {
		t.Fatal("ReadFrom without traffic succeeded")
	}
	if got := counter.Snapshot(); got.ReadEvents != 0 {
		t.Errorf("timed out read reported: %v", got)
	}
}

func TestServerEchoThroughClient(t *testing.T) {
	counter := registerCounter(t)

	var mu sync.Mutex
	var peers []string
	srv := NewServer("udp", "127.0.0.1:0", nil)
	srv.SetEventHandler(iface.EventHandlerFuncs{
		Connect: func(conn iface.Connection) {
			mu.Lock()
			peers = append(peers, conn.ID())
			mu.Unlock()
		},
		Message: func(conn iface.Connection, data []byte) {
			conn.Write(data)
		},
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	replies := make(chan []byte, 4)
	client := NewClient("udp", srv.Addr().String(), nil)
	client.SetEventHandler(iface.EventHandlerFuncs{
		Message: func(_ iface.Connection, data []byte) { replies <- data },
	})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	for _, msg := range []string{"one", "two"} {
		if _, err := client.Send([]byte(msg)); err != nil {
			t.Fatalf("Send(%q): %v", msg, err)
		}
		select {
		case got := <-replies:
			if string(got) != msg {
				t.Errorf("reply = %q, want %q", got, msg)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("no reply for %q", msg)
		}
	}

	mu.Lock()
	if len(peers) != 1 {
		t.Errorf("peers = %v, want exactly one", peers)
	}
	mu.Unlock()

	// 2 client sends, 2 server reads, 2 echoes, 2 client reads; 6 bytes each way
	waitFor(t, "hook totals", func() bool {
		s := counter.Snapshot()
		return s.WriteEvents == 4 && s.ReadEvents == 4 && s.ReadBytes == 12 && s.WriteBytes == 12
	})

	id := client.Socket().LocalAddr().String()
	conn, ok := srv.GetConnection(id)
	if !ok {
		t.Fatalf("GetConnection(%s) missing", id)
	}
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Error("peer Read succeeded, want error")
	}
	srv.RemoveConnection(id)
	if srv.ConnectionCount() != 0 {
		t.Errorf("ConnectionCount = %d, want 0", srv.ConnectionCount())
	}
	if _, err := conn.Write([]byte("x")); err == nil {
		t.Error("write on removed peer succeeded")
	}
}

func TestServerMaxConnectionsDropsNewPeers(t *testing.T) {
	opts := NewServerOptions()
	opts.MaxConnections = 1
	srv := NewServer("udp", "127.0.0.1:0", opts)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	for i := 0; i < 2; i++ {
		s, err := Dial(context.Background(), "udp", srv.Addr().String())
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		defer s.Close()
		s.Write([]byte("x"))
		if i == 0 {
			waitFor(t, "first peer", func() bool { return srv.ConnectionCount() == 1 })
		}
	}
	time.Sleep(50 * time.Millisecond)
	if srv.ConnectionCount() != 1 {
		t.Errorf("ConnectionCount = %d, want 1", srv.ConnectionCount())
	}
}

func TestServerStopClosesPeers(t *testing.T) {
	var closes int
	var mu sync.Mutex
	srv := NewServer("udp", "127.0.0.1:0", nil)
	srv.SetEventHandler(iface.EventHandlerFuncs{
		Close: func(iface.Connection) {
			mu.Lock()
			closes++
			mu.Unlock()
		},
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s, err := Dial(context.Background(), "udp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer s.Close()
	s.Write([]byte("x"))
	waitFor(t, "peer", func() bool { return srv.ConnectionCount() == 1 })

	if err := srv.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if closes != 1 {
		t.Errorf("closes = %d, want 1", closes)
	}
	if err := srv.Start(); err == nil {
		t.Error("Start after Stop succeeded")
	}
}

func TestServerStopDuringNewPeers(t *testing.T) {
	for i := 0; i < 50; i++ {
		var mu sync.Mutex
		var connects, closes int
		srv := NewServer("udp", "127.0.0.1:0", nil)
		srv.SetEventHandler(iface.EventHandlerFuncs{
			Connect: func(iface.Connection) {
				mu.Lock()
				connects++
				mu.Unlock()
			},
			Close: func(iface.Connection) {
				mu.Lock()
				closes++
				mu.Unlock()
			},
		})
		if err := srv.Start(); err != nil {
			t.Fatalf("round %d: Start: %v", i, err)
		}
		addr := srv.Addr().String()

		stop := make(chan struct{})
		var wg sync.WaitGroup
		for j := 0; j < 20; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s, err := Dial(context.Background(), "udp", addr)
				if err != nil {
					return
				}
				defer s.Close()
				for {
					select {
					case <-stop:
						return
					default:
					}
					s.Write([]byte("x"))
					time.Sleep(time.Millisecond)
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
			t.Fatalf("round %d: Stop did not return", i)
		}
		close(stop)
		wg.Wait()

		if n := srv.ConnectionCount(); n != 0 {
			t.Errorf("round %d: ConnectionCount = %d after Stop, want 0", i, n)
		}
		mu.Lock()
		if connects != closes {
			t.Errorf("round %d: connects = %d, closes = %d", i, connects, closes)
		}
		mu.Unlock()
	}
}
