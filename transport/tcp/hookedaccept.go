// File: transport/tcp/hookedaccept.go
// Raw-fd accept hooking: recovers a bound listener's descriptor and drives
// its accept loop through a non-blocking syscall plus the reactor's
// WaitReadable instead of blocking the accept goroutine in the kernel.
//
// Grounded on the same SyscallConn-based fd recovery rpcsession/hooked.go
// uses for connections, applied here to the listening socket; an accepted
// fd is handed to net.FileConn rather than hand-rolled into a *net.TCPConn,
// since FileConn already knows how to dup a raw fd into a usable net.Conn.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package tcp

import (
	"errors"
	"net"
	"os"
	"syscall"
)

var errAcceptWouldBlock = errors.New("tcp: accept would block")

func listenerFD(ln net.Listener) (fd uintptr, ok bool) {
	sc, isSyscallConn := ln.(syscall.Conn)
	if !isSyscallConn {
		return 0, false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, false
	}
	if err := raw.Control(func(f uintptr) { fd = f }); err != nil {
		return 0, false
	}
	return fd, true
}

func connFromFD(fd uintptr) (net.Conn, error) {
	f := os.NewFile(fd, "")
	defer f.Close()
	return net.FileConn(f)
}
