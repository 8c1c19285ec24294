// File: cosync/semaphore.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package cosync

// Semaphore is a counting semaphore built from a counter and a Cond.
type Semaphore struct {
	cond  Cond
	count int
}

// NewSemaphore builds a semaphore initialized with n permits.
func NewSemaphore(n int) *Semaphore {
	return &Semaphore{count: n}
}

// Acquire blocks until a permit is available, then takes it.
func (s *Semaphore) Acquire() {
	s.cond.mu.Lock()
	for s.count == 0 {
		ch := make(chan struct{})
		s.cond.waiters = append(s.cond.waiters, ch)
		s.cond.mu.Unlock()
		<-ch
		s.cond.mu.Lock()
	}
	s.count--
	s.cond.mu.Unlock()
}

// TryAcquire takes a permit only if one is immediately available.
func (s *Semaphore) TryAcquire() bool {
	s.cond.mu.Lock()
	defer s.cond.mu.Unlock()
	if s.count == 0 {
		return false
	}
	s.count--
	return true
}

// Release returns a permit, waking one waiter if any are parked.
func (s *Semaphore) Release() {
	s.cond.mu.Lock()
	s.count++
	var wake chan struct{}
	if len(s.cond.waiters) > 0 {
		wake = s.cond.waiters[0]
		s.cond.waiters = s.cond.waiters[1:]
	}
	s.cond.mu.Unlock()
	if wake != nil {
		close(wake)
	}
}
