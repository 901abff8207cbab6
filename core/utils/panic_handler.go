// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package utils

import (
	"runtime/debug"
	"sync"

	"github.com/cocowh/iohook/pkg/logger"
)

var (
	once         sync.Once
	PanicHandler PanicHandlerFunc
)

func init() {
	PanicHandler = func(f func()) {
		if err := recover(); err != nil {
			logger.Errorf("recover panic. error:%v, stack: %s", err, debug.Stack())
			if f != nil {
				f()
			}
		}
	}
}

// PanicHandlerFunc is deferred at goroutine boundaries:
//
//	defer utils.PanicHandler(cleanup)
//
// Implementations must call recover themselves.
type PanicHandlerFunc func(f func())

// SetPanicHandler replaces the default handler. Only the first call takes
// effect; call it before starting servers.
func SetPanicHandler(f PanicHandlerFunc) {
	if f != nil {
		once.Do(func() {
			PanicHandler = f
		})
	}
}
