// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iface

import (
	"context"
	"net"
)

type Client interface {
	Connect(ctx context.Context) error
	Send(data []byte) (int, error)
	Close() error
	SetEventHandler(eventHandler EventHandler)
	Context() context.Context
}

type Server interface {
	Start() error
	Stop() error
	Addr() net.Addr
	SetEventHandler(eventHandler EventHandler)
	GetConnection(id string) (Connection, bool)
	RemoveConnection(id string)
}
