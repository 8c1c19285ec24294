// File: rpcsession/session.go
// Package rpcsession implements an ordered send/receive contract: one
// Session per net.Conn, serializing concurrent senders and reading whole
// frames off the wire.
//
// Grounded on internal/session/session.go's per-connection wrapper shape
// (mutex-guarded writes, explicit Close), generalized here from WebSocket
// session bookkeeping to the fixed-header RPC frame protocol.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package rpcsession

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/momentics/hioload-ws/reactor"
	"github.com/momentics/hioload-ws/wire"
)

// ErrClosed is returned by Recv once the session's connection has been
// closed, standing in for a null-sentinel return from recv().
var ErrClosed = errors.New("rpcsession: closed")

// Session owns one connection's framing boundary: writes are serialized by
// a per-session mutex, and Recv is intended to be called from a single
// reading goroutine, so reads stay serialized without extra locking.
type Session struct {
	conn net.Conn
	r    *bufio.Reader
	w    io.Writer

	hookedFd uintptr
	reactor  *reactor.Reactor

	sendMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// New wraps conn as a Session using plain blocking reads and writes.
func New(conn net.Conn) *Session {
	return newSession(conn, conn, conn, 0, nil)
}

// NewHooked wraps conn as a Session whose Send/Recv wait on rct's readiness
// loop instead of blocking the calling goroutine in the kernel, provided
// conn exposes a raw descriptor (a real TCP socket, not net.Pipe or a TLS
// conn) and hooking is implemented on this platform (Linux only, today).
// Falls back to New's plain blocking behavior otherwise, silently.
func NewHooked(conn net.Conn, rct *reactor.Reactor) *Session {
	if rct == nil {
		return New(conn)
	}
	fd, ok := rawFD(conn)
	if !ok {
		return New(conn)
	}
	hc, err := newHookedConn(fd, rct)
	if err != nil {
		return New(conn)
	}
	return newSession(conn, hc, hc, fd, rct)
}

func newSession(conn net.Conn, r io.Reader, w io.Writer, fd uintptr, rct *reactor.Reactor) *Session {
	return &Session{
		conn:     conn,
		r:        bufio.NewReaderSize(r, 64*1024),
		w:        w,
		hookedFd: fd,
		reactor:  rct,
		closed:   make(chan struct{}),
	}
}

// RemoteAddr returns the underlying connection's remote address.
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// LocalAddr returns the underlying connection's local address.
func (s *Session) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Send serializes f and writes it in full, looping on short writes.
// Concurrent callers are serialized so bytes appear on the wire in call
// order.
func (s *Session) Send(f wire.Frame) error {
	raw := wire.Encode(f)
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	for len(raw) > 0 {
		n, err := s.w.Write(raw)
		if err != nil {
			return err
		}
		raw = raw[n:]
	}
	return nil
}

// Recv reads exactly one frame off the wire, blocking until a full header
// and payload are available. It returns ErrClosed once the underlying
// connection is closed or reset.
func (s *Session) Recv() (wire.Frame, error) {
	header := make([]byte, wire.HeaderLen)
	if _, err := io.ReadFull(s.r, header); err != nil {
		return wire.Frame{}, s.translateReadErr(err)
	}
	msgType, seq, contentLength, err := wire.DecodeHeader(header)
	if err != nil {
		s.Close()
		return wire.Frame{}, err
	}
	payload := make([]byte, contentLength)
	if contentLength > 0 {
		if _, err := io.ReadFull(s.r, payload); err != nil {
			return wire.Frame{}, s.translateReadErr(err)
		}
	}
	return wire.Frame{Type: msgType, SequenceID: seq, Payload: payload}, nil
}

func (s *Session) translateReadErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	if errors.Is(err, reactor.ErrCancelled) {
		return ErrClosed
	}
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	return err
}

// Close closes the underlying connection. Safe to call more than once and
// from multiple goroutines. On a hooked Session, this also cancels the
// descriptor's reactor registration so a goroutine parked in Recv/Send
// wakes with ErrClosed instead of hanging on a readiness wait that will
// never fire again.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.reactor != nil {
			s.reactor.CancelEvent(s.hookedFd, reactor.Readable|reactor.Writable)
		}
		err = s.conn.Close()
	})
	return err
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
