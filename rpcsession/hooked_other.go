//go:build !linux
// +build !linux

// File: rpcsession/hooked_other.go
// Non-Linux platforms fall back to plain blocking Session I/O: the
// reactor's Windows IOCP backend is completion-based (registering a handle
// does not by itself arm a read/write the way epoll readiness does), so
// raw non-blocking fd hooking only has a real implementation on Linux today.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package rpcsession

const hookingSupported = false

func setNonblock(fd uintptr) error { return errHookingUnsupported }

func rawRead(fd uintptr, p []byte) (int, error) { return 0, errHookingUnsupported }

func rawWrite(fd uintptr, p []byte) (int, error) { return 0, errHookingUnsupported }
