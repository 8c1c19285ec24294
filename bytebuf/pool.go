// File: bytebuf/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bytebuf

import "github.com/momentics/hioload-ws/pool"

var sharedPool = pool.NewSyncPool(func() *ByteBuf { return New() })

// Get returns a reset ByteBuf from the shared pool, allocating a fresh one
// only when the pool is empty.
func Get() *ByteBuf {
	return sharedPool.Get()
}

// Put resets buf and returns it to the shared pool. Callers must not touch
// buf again afterward, and must not call Put on a ByteBuf whose Bytes()
// slice is still referenced elsewhere — copy out first.
func Put(buf *ByteBuf) {
	buf.Reset()
	sharedPool.Put(buf)
}
