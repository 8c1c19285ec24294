// File: rpcsession/hooked.go
// Reactor-hooked I/O: extracts a connection's raw descriptor and drives
// reads/writes through non-blocking syscalls plus reactor.WaitReadable/
// WaitWritable instead of blocking the calling goroutine in the kernel.
//
// Grounded on examples/reactor_echo/main.go's getFD (SyscallConn.Control to
// recover the raw fd) and socket_unix.go's syscall.Read/Write-on-fd pair,
// generalized here into an io.Reader/io.Writer adapter that Session can drop
// in place of the plain net.Conn path.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package rpcsession

import (
	"errors"
	"net"
	"syscall"

	"github.com/momentics/hioload-ws/reactor"
)

// errWouldBlock signals that a raw read/write returned EAGAIN and the
// caller should wait for readiness before retrying.
var errWouldBlock = errors.New("rpcsession: would block")

// errHookingUnsupported is returned by the platform stubs on OSes without a
// raw non-blocking read/write implementation wired in yet.
var errHookingUnsupported = errors.New("rpcsession: reactor hooking unsupported on this platform")

// rawFD recovers conn's underlying descriptor via syscall.Conn, when conn
// exposes one. net.Pipe, TLS, and any platform without hookingSupported all
// report ok=false, so the caller can fall back to plain blocking I/O.
func rawFD(conn net.Conn) (fd uintptr, ok bool) {
	if !hookingSupported {
		return 0, false
	}
	sc, isSyscallConn := conn.(syscall.Conn)
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

// hookedConn adapts a raw non-blocking descriptor to io.Reader/io.Writer,
// parking on the reactor's readiness wait instead of the kernel whenever a
// syscall would block.
type hookedConn struct {
	fd uintptr
	r  *reactor.Reactor
}

func newHookedConn(fd uintptr, r *reactor.Reactor) (*hookedConn, error) {
	if err := setNonblock(fd); err != nil {
		return nil, err
	}
	return &hookedConn{fd: fd, r: r}, nil
}

// Read blocks until at least one byte is available or the reactor reports
// the descriptor errored or was cancelled (see Session.Close).
func (h *hookedConn) Read(p []byte) (int, error) {
	for {
		n, err := rawRead(h.fd, p)
		if err == errWouldBlock {
			if werr := h.r.WaitReadable(h.fd, -1); werr != nil {
				return 0, werr
			}
			continue
		}
		return n, err
	}
}

// Write blocks until all of p is written, parking on WaitWritable whenever
// the socket's send buffer is full.
func (h *hookedConn) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := rawWrite(h.fd, p[total:])
		if err == errWouldBlock {
			if werr := h.r.WaitWritable(h.fd, -1); werr != nil {
				return total, werr
			}
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
