// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package sockopt

import "syscall"

func ReusePort(network, address string, c syscall.RawConn) error {
	return nil
}

const Supported = false
