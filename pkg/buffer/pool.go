// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buffer

import "sync"

const (
	// StreamSize is the read buffer used by tcp connection loops.
	StreamSize = 4096
	// DatagramSize holds the largest UDP payload.
	DatagramSize = 65536
)

var pools sync.Map // int -> *sync.Pool

func poolFor(size int) *sync.Pool {
	if p, ok := pools.Load(size); ok {
		return p.(*sync.Pool)
	}
	p, _ := pools.LoadOrStore(size, &sync.Pool{New: func() any {
		b := make([]byte, size)
		return &b
	}})
	return p.(*sync.Pool)
}

// Acquire returns a buffer of exactly size bytes.
func Acquire(size int) *[]byte {
	if size <= 0 {
		size = StreamSize
	}
	return poolFor(size).Get().(*[]byte)
}

// Release returns b to the pool of its length.
func Release(b *[]byte) {
	if b == nil || len(*b) == 0 {
		return
	}
	poolFor(len(*b)).Put(b)
}
