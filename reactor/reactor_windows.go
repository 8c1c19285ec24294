//go:build windows
// +build windows

// File: reactor/reactor_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows IOCP (I/O Completion Port) reactor implementation and factory.
// IOCP is completion-based rather than readiness-based, so this backend can
// only approximate the epoll semantics the higher-level Reactor expects:
// every delivered event reports both directions ready and the caller's own
// non-blocking retry loop discovers which one actually was.

package reactor

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsReactor is an IOCP-based event reactor.
type windowsReactor struct {
	iocp windows.Handle
}

// NewReactor constructs a new platform-specific EventReactor for Windows.
func NewReactor() (EventReactor, error) {
	port, err := windows.CreateIoCompletionPort(
		windows.InvalidHandle,
		0,
		0,
		0,
	)
	if err != nil {
		return nil, err
	}
	return &windowsReactor{
		iocp: port,
	}, nil
}

// Register associates a handle with IOCP.
func (r *windowsReactor) Register(handle uintptr, userData uintptr) error {
	h := windows.Handle(handle)
	_, err := windows.CreateIoCompletionPort(
		h,
		r.iocp,
		userData,
		0,
	)
	return err
}

// Unregister is a no-op: IOCP offers no disassociation primitive short of
// closing the handle. The owning Reactor drops its own bookkeeping entry so
// any later completion for this descriptor is silently ignored.
func (r *windowsReactor) Unregister(fd uintptr) error {
	return nil
}

// Wait blocks for one IO completion up to timeoutMs (negative blocks
// indefinitely).
func (r *windowsReactor) Wait(events []Event, timeoutMs int) (int, error) {
	if len(events) == 0 {
		return 0, errors.New("reactor: empty event buffer")
	}

	var key uintptr
	var overlapped *windows.Overlapped
	timeout := uint32(windows.INFINITE)
	if timeoutMs >= 0 {
		timeout = uint32(timeoutMs)
	}

	err := windows.GetQueuedCompletionStatus(r.iocp, nil, &key, &overlapped, timeout)
	if err != nil {
		if err == windows.WAIT_TIMEOUT {
			return 0, nil
		}
		return 0, err
	}
	events[0] = Event{
		Fd:       uintptr(unsafe.Pointer(overlapped)),
		UserData: key,
		Mask:     Readable | Writable,
	}
	return 1, nil
}

// Close closes the IOCP handle.
func (r *windowsReactor) Close() error {
	return windows.CloseHandle(r.iocp)
}
