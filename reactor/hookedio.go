// File: reactor/hookedio.go
// Hooked I/O: a blocking-looking socket call implemented as "try the
// syscall, and if it would block, suspend until the reactor says the
// descriptor is ready again". Grounded on the non-blocking accept/read
// loops in transport/tcp/listener.go, generalized from an inline retry
// loop into a reusable wait primitive.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package reactor

import "errors"

// ErrTimeout is returned by WaitReadable/WaitWritable when the deadline
// elapses before the descriptor becomes ready.
var ErrTimeout = errors.New("reactor: wait timed out")

// ErrCancelled is returned by WaitReadable/WaitWritable when the
// registration is cancelled out from under the waiter (CancelEvent or
// CancelAll) rather than becoming ready or timing out.
var ErrCancelled = errors.New("reactor: wait cancelled")

// WaitReadable blocks the calling goroutine until fd is readable (or errored),
// or until timeoutMs elapses (a negative timeout waits indefinitely). It is
// meant to be called from inside a fiber's entry function, immediately after
// a non-blocking read returns EAGAIN/EWOULDBLOCK.
func (r *Reactor) WaitReadable(fd uintptr, timeoutMs int64) error {
	return r.waitFor(fd, Readable, timeoutMs)
}

// WaitWritable blocks the calling goroutine until fd is writable (or
// errored), or until timeoutMs elapses.
func (r *Reactor) WaitWritable(fd uintptr, timeoutMs int64) error {
	return r.waitFor(fd, Writable, timeoutMs)
}

func (r *Reactor) waitFor(fd uintptr, mask EventMask, timeoutMs int64) error {
	done := make(chan EventMask, 1)
	if err := r.AddEvent(fd, mask, func(m EventMask) {
		select {
		case done <- m:
		default:
		}
	}); err != nil {
		return err
	}
	defer r.DelEvent(fd, mask)

	if timeoutMs < 0 {
		m := <-done
		return maskToErr(m)
	}

	timer := r.wheel.AddTimer(timeoutMs, func() {
		select {
		case done <- 0:
		default:
		}
	}, false)
	defer timer.Cancel()

	m := <-done
	if m == 0 {
		return ErrTimeout
	}
	return maskToErr(m)
}

func maskToErr(m EventMask) error {
	if m&ErrEvent != 0 {
		return errors.New("reactor: descriptor error")
	}
	if m&Cancelled != 0 {
		return ErrCancelled
	}
	return nil
}
