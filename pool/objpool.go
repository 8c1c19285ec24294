// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package pool holds the one generic object-pool primitive the rest of
// the module builds on: a typed wrapper over sync.Pool. Every other
// reuse concern (chunked byte-buffer storage, NUMA slab allocation)
// belongs to the domain package that owns the shape being pooled.
package pool

import "sync"

// SyncPool is a type-safe sync.Pool for a single reusable type T.
// Get never returns nil: a miss calls creator to mint a fresh value.
type SyncPool[T any] struct {
	pool *sync.Pool
}

// NewSyncPool builds a SyncPool whose misses are filled by creator.
func NewSyncPool[T any](creator func() T) *SyncPool[T] {
	return &SyncPool[T]{
		pool: &sync.Pool{New: func() any { return creator() }},
	}
}

// Get returns a pooled value, creating one if the pool is empty.
func (p *SyncPool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put returns v to the pool for future reuse.
func (p *SyncPool[T]) Put(v T) {
	p.pool.Put(v)
}
