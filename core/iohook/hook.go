// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iohook

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/cocowh/iohook/pkg/errors"
	"github.com/cocowh/iohook/pkg/logger"
)

// Hook receives the size of every completed socket transfer. Calls hold a
// process-wide lock shared with all socket I/O, so implementations must
// return quickly.
type Hook interface {
	OnRead(n uint64)
	OnWrite(n uint64)
}

// HookFuncs adapts plain functions to Hook. Nil fields are skipped.
type HookFuncs struct {
	Read  func(n uint64)
	Write func(n uint64)
}

func (f HookFuncs) OnRead(n uint64) {
	if f.Read != nil {
		f.Read(n)
	}
}

func (f HookFuncs) OnWrite(n uint64) {
	if f.Write != nil {
		f.Write(n)
	}
}

type registration struct {
	hook Hook
}

var (
	slot   atomic.Pointer[registration]
	mu     sync.Mutex
	faults atomic.Uint64
)

// Init publishes h as the process-wide hook, replacing any previous one.
// Dispatches that begin after Init returns see h. Passing nil, or an
// interface holding a nil pointer, leaves the slot empty.
func Init(h Hook) {
	if isNil(h) {
		slot.Store(nil)
		return
	}
	slot.Store(&registration{hook: h})
}

func isNil(h Hook) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Current returns the registered hook, or nil.
func Current() Hook {
	if r := slot.Load(); r != nil {
		return r.hook
	}
	return nil
}

// Faults returns how many hook panics have been contained so far.
func Faults() uint64 {
	return faults.Load()
}

// NotifyRead reports a successful read of n bytes.
func NotifyRead(n int) {
	if slot.Load() == nil {
		return
	}
	dispatch(n, false)
}

// NotifyWrite reports a successful write of n bytes.
func NotifyWrite(n int) {
	if slot.Load() == nil {
		return
	}
	dispatch(n, true)
}

func dispatch(n int, write bool) {
	mu.Lock()
	defer mu.Unlock()

	// reload under the lock so a registration published while we waited wins
	r := slot.Load()
	if r == nil {
		return
	}
	defer contain(r.hook)

	if write {
		r.hook.OnWrite(uint64(max(n, 0)))
	} else {
		r.hook.OnRead(uint64(max(n, 0)))
	}
}

func contain(h Hook) {
	v := recover()
	if v == nil {
		return
	}
	c := faults.Add(1)
	// log 1st, 2nd, 4th, 8th... fault so a broken hook cannot flood the logs
	if c&(c-1) == 0 {
		logger.Warnf("io hook %T fault contained (total %d): %v", h, c, errors.PanicError(v))
	}
}
