//go:build linux
// +build linux

// File: transport/tcp/hookedaccept_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package tcp

import "golang.org/x/sys/unix"

const hookingSupported = true

func setNonblock(fd uintptr) error {
	return unix.SetNonblock(int(fd), true)
}

func rawAccept(fd uintptr) (uintptr, error) {
	nfd, _, err := unix.Accept4(int(fd), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err == unix.EAGAIN {
		return 0, errAcceptWouldBlock
	}
	if err != nil {
		return 0, err
	}
	return uintptr(nfd), nil
}
