// File: cosync/mutex.go
// Package cosync implements fiber-aware synchronization primitives:
// mutex, condition variable, semaphore, count-down latch, and bounded
// typed channel. Contention parks only the calling goroutine (which in
// this port is always exactly one fiber's goroutine, see fiber.Fiber)
// rather than an OS thread, avoiding kernel-thread blocking without
// needing an explicit yield call: a channel receive already yields the
// goroutine back to the Go runtime scheduler.
//
// Grounded on the waiter-queue-free style used throughout pool/ and
// control/ (plain sync.Mutex use), generalized here to fiber-reentrant
// locking to serve a coroutine runtime that plain sync.Mutex use alone
// doesn't provide.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package cosync

import "sync"

// Mutex is reentrant with respect to an explicit owner token — typically a
// fiber.Fiber's ID(), for callers running inside the fiber runtime, or any
// other stable per-caller identity for callers that are not. Passing 0
// disables reentrancy checks, so every Lock/Unlock pair is treated as
// independent.
type Mutex struct {
	mu      sync.Mutex
	owner   int64
	count   int
	waiters []chan struct{}
}

// Lock acquires the mutex for owner, blocking (parking the calling
// goroutine on a private channel, not spinning) while held by a different
// owner. Re-locking by the same owner increments a reentrancy count.
func (m *Mutex) Lock(owner int64) {
	m.mu.Lock()
	for {
		if m.count == 0 {
			m.owner = owner
			m.count = 1
			m.mu.Unlock()
			return
		}
		if owner != 0 && m.owner == owner {
			m.count++
			m.mu.Unlock()
			return
		}
		wait := make(chan struct{})
		m.waiters = append(m.waiters, wait)
		m.mu.Unlock()

		<-wait

		// Another Lock may have taken the mutex between Unlock and this
		// wake-up, so re-check instead of assuming ownership.
		m.mu.Lock()
	}
}

// TryLock attempts to acquire the mutex without blocking.
func (m *Mutex) TryLock(owner int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == 0 {
		m.owner = owner
		m.count = 1
		return true
	}
	if owner != 0 && m.owner == owner {
		m.count++
		return true
	}
	return false
}

// Unlock releases one level of ownership, waking the longest-waiting
// blocked owner once the reentrancy count reaches zero.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	m.count--
	if m.count > 0 {
		m.mu.Unlock()
		return
	}
	m.owner = 0
	if len(m.waiters) == 0 {
		m.mu.Unlock()
		return
	}
	next := m.waiters[0]
	m.waiters = m.waiters[1:]
	m.mu.Unlock()
	close(next)
}
