// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>
//
// Package tcp implements a multi-address TCP listener: a bind/accept
// loop that dispatches accepted connections to a worker pool instead of
// handling them inline on the accept goroutine.
//
// Grounded on transport/tcp/listener.go's accept-loop shape (one
// goroutine per listening address, recover-and-continue on transient
// accept errors, optional CPU affinity pinning); the WebSocket HTTP
// upgrade handshake that file performed is dropped since this protocol's
// framing starts directly at the fixed 11-byte header.

package tcp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/momentics/hioload-ws/cosync"
	"github.com/momentics/hioload-ws/logging"
	"github.com/momentics/hioload-ws/reactor"
	"github.com/momentics/hioload-ws/sched"
)

// Config configures a multi-address Listener.
type Config struct {
	// Addrs is the set of "host:port" addresses to bind and accept on.
	Addrs []string
	// WorkerCPUs optionally pins each accept goroutine to a CPU, by index
	// modulo len(WorkerCPUs).
	WorkerCPUs []int
	// Handler runs (dispatched through Scheduler) for every accepted
	// connection.
	Handler func(net.Conn)
	// Scheduler dispatches accepted connections; required.
	Scheduler *sched.Scheduler
	// Reactor, if set, drives accepts through a non-blocking socket plus
	// WaitReadable instead of a blocking Accept call per listener goroutine
	// (Linux only; falls back to a plain blocking accept loop elsewhere, or
	// when the listener's raw descriptor cannot be recovered).
	Reactor *reactor.Reactor
	// Log is optional; defaults to a no-op sink.
	Log logging.Logger
}

// Listener binds Config.Addrs and runs one accept loop per address, handing
// each accepted connection to the configured Scheduler as an any-worker
// closure task.
type Listener struct {
	cfg       Config
	log       logging.Logger
	listeners []net.Listener
	// done counts down one per accept loop as it exits, so Close can wait
	// for all of them without a sync.WaitGroup.
	done      *cosync.CountDownLatch
	closeOnce sync.Once
}

// New validates cfg and constructs a Listener. Binding happens in Start.
func New(cfg Config) (*Listener, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("tcp: at least one address is required")
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("tcp: Handler is required")
	}
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("tcp: Scheduler is required")
	}
	log := cfg.Log
	if log == nil {
		log = logging.Nop()
	}
	return &Listener{cfg: cfg, log: log, done: cosync.NewCountDownLatch(len(cfg.Addrs))}, nil
}

// Start binds every configured address and begins accepting. It returns
// once every address is bound; accept loops continue running in the
// background until Close.
func (l *Listener) Start() error {
	for i, addr := range l.cfg.Addrs {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			l.closeBound()
			return fmt.Errorf("tcp: listen %s: %w", addr, err)
		}
		l.listeners = append(l.listeners, ln)
		cpu := -1
		if len(l.cfg.WorkerCPUs) > 0 {
			cpu = l.cfg.WorkerCPUs[i%len(l.cfg.WorkerCPUs)]
		}
		go func() {
			if cpu >= 0 {
				setCPUAffinity(cpu)
			}
			l.acceptLoop(ln)
		}()
	}
	return nil
}

func (l *Listener) acceptLoop(ln net.Listener) {
	defer l.done.CountDown()
	if l.cfg.Reactor != nil && hookingSupported {
		if fd, ok := listenerFD(ln); ok {
			l.hookedAcceptLoop(ln, fd)
			return
		}
		l.log.Warn("tcp: reactor set but listener fd unavailable, falling back to blocking accept")
	}
	l.blockingAcceptLoop(ln)
}

func (l *Listener) blockingAcceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if isClosedErr(err) {
				return
			}
			l.log.Warn("tcp: accept error", logging.Err(err))
			continue
		}
		l.dispatch(conn)
	}
}

func (l *Listener) hookedAcceptLoop(ln net.Listener, fd uintptr) {
	if err := setNonblock(fd); err != nil {
		l.log.Warn("tcp: setNonblock failed, falling back to blocking accept", logging.Err(err))
		l.blockingAcceptLoop(ln)
		return
	}
	for {
		connFd, err := rawAccept(fd)
		if err == errAcceptWouldBlock {
			if werr := l.cfg.Reactor.WaitReadable(fd, -1); werr != nil {
				return
			}
			continue
		}
		if err != nil {
			if isClosedErr(err) {
				return
			}
			l.log.Warn("tcp: accept error", logging.Err(err))
			continue
		}
		conn, err := connFromFD(connFd)
		if err != nil {
			l.log.Warn("tcp: wrap accepted fd failed", logging.Err(err))
			continue
		}
		l.dispatch(conn)
	}
}

func (l *Listener) dispatch(conn net.Conn) {
	handler := l.cfg.Handler
	l.cfg.Scheduler.ScheduleFunc(func() { handler(conn) }, sched.AnyWorker)
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

func (l *Listener) closeBound() {
	for _, ln := range l.listeners {
		ln.Close()
	}
}

// Close stops every accept loop and waits for them to exit.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		// Closing a descriptor never fires a readiness event, so a hooked
		// loop parked in WaitReadable is released by cancelling its wait.
		if l.cfg.Reactor != nil && hookingSupported {
			for _, ln := range l.listeners {
				if fd, ok := listenerFD(ln); ok {
					l.cfg.Reactor.CancelEvent(fd, reactor.Readable)
				}
			}
		}
		l.closeBound()
	})
	l.done.Wait()
	return nil
}

// Addrs reports the actual bound addresses, useful when Config.Addrs used
// an ephemeral port ("127.0.0.1:0").
func (l *Listener) Addrs() []net.Addr {
	addrs := make([]net.Addr, len(l.listeners))
	for i, ln := range l.listeners {
		addrs[i] = ln.Addr()
	}
	return addrs
}
