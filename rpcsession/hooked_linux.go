//go:build linux
// +build linux

// File: rpcsession/hooked_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package rpcsession

import "golang.org/x/sys/unix"

const hookingSupported = true

func setNonblock(fd uintptr) error {
	return unix.SetNonblock(int(fd), true)
}

func rawRead(fd uintptr, p []byte) (int, error) {
	n, err := unix.Read(int(fd), p)
	if err == unix.EAGAIN {
		return 0, errWouldBlock
	}
	return n, err
}

func rawWrite(fd uintptr, p []byte) (int, error) {
	n, err := unix.Write(int(fd), p)
	if err == unix.EAGAIN {
		return 0, errWouldBlock
	}
	return n, err
}
