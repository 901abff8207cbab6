// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package iohook lets a process observe the byte counts moved by every socket
// created through the tcp and udp packages.
//
// A single Hook is registered process-wide with Init, normally once during
// startup. Socket wrappers call NotifyRead and NotifyWrite inline after each
// successful transfer. With no hook registered both calls return after one
// atomic load. Hook methods are serialized and never nested, and a panic inside
// a hook is contained so instrumentation can never fail the I/O that triggered
// it.
package iohook
