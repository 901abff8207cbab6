// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iface

type EventHandler interface {
	OnConnect(conn Connection)
	// OnMessage receives a copy of the bytes read; the slice may be retained.
	OnMessage(conn Connection, data []byte)
	OnClose(conn Connection)
	OnError(conn Connection, err error)
}

// EventHandlerFuncs adapts optional callbacks to EventHandler.
type EventHandlerFuncs struct {
	Connect func(conn Connection)
	Message func(conn Connection, data []byte)
	Close   func(conn Connection)
	Error   func(conn Connection, err error)
}

func (h EventHandlerFuncs) OnConnect(conn Connection) {
	if h.Connect != nil {
		h.Connect(conn)
	}
}

func (h EventHandlerFuncs) OnMessage(conn Connection, data []byte) {
	if h.Message != nil {
		h.Message(conn, data)
	}
}

func (h EventHandlerFuncs) OnClose(conn Connection) {
	if h.Close != nil {
		h.Close(conn)
	}
}

func (h EventHandlerFuncs) OnError(conn Connection, err error) {
	if h.Error != nil {
		h.Error(conn, err)
	}
}

// Echo writes every message back to its sender.
var Echo EventHandler = EventHandlerFuncs{
	Message: func(conn Connection, data []byte) {
		_, _ = conn.Write(data)
	},
}
