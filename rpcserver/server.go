// File: rpcserver/server.go
// Package rpcserver implements an RPC server: a handler table keyed by
// method name, an accept loop with per-connection heartbeat watchdogs,
// pub/sub fan-out to weak sessions, and an optional registry link that
// announces this server as a provider on startup.
//
// Grounded on server/server.go's facade shape (Config-with-defaults,
// functional ServerOption, Serve/Shutdown lifecycle) and server/types.go's
// Config struct, generalized from a WebSocket handler/listener pairing to
// the fixed-header RPC frame protocol's method dispatch table.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package rpcserver

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-ws/bytebuf"
	"github.com/momentics/hioload-ws/control"
	"github.com/momentics/hioload-ws/cosync"
	"github.com/momentics/hioload-ws/logging"
	"github.com/momentics/hioload-ws/reactor"
	"github.com/momentics/hioload-ws/rpcclient"
	"github.com/momentics/hioload-ws/rpcsession"
	"github.com/momentics/hioload-ws/rpcstatus"
	"github.com/momentics/hioload-ws/sched"
	"github.com/momentics/hioload-ws/serializer"
	"github.com/momentics/hioload-ws/transport/tcp"
	"github.com/momentics/hioload-ws/wire"
)

// DefaultHeartbeatTimeout is the per-connection watchdog default: a
// session that goes this long without any frame is presumed dead.
const DefaultHeartbeatTimeout = 40 * time.Second

// DefaultCleanInterval is how often the subscriber table is pruned of dead
// weak sessions.
const DefaultCleanInterval = 5 * time.Second

// Config configures a Server.
type Config struct {
	Addrs            []string
	RegistryAddr     string
	HeartbeatTimeout time.Duration
	CleanInterval    time.Duration
	// MaxConcurrentCalls bounds how many RPC_METHOD_REQUEST dispatches run
	// at once across all sessions; 0 means unbounded.
	MaxConcurrentCalls int
	Workers          int
	// WorkerCPUs optionally pins each scheduler worker to a logical CPU.
	WorkerCPUs       []int
	Log              logging.Logger
	// Metrics, if set, receives open-session counts and per-method call
	// counters/latencies. Nil disables metrics entirely.
	Metrics *control.MetricsRegistry
	// Debug, if set, receives a "sessions_open" probe reporting the
	// live session count. Nil disables probe registration.
	Debug *control.DebugProbes
}

func (c *Config) setDefaults() {
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.CleanInterval == 0 {
		c.CleanInterval = DefaultCleanInterval
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.Log == nil {
		c.Log = logging.Nop()
	}
}

// Dispatcher decodes arguments from r, invokes the underlying handler, and
// returns a fully-encoded Result<T> payload (code + message + value) ready
// to ship as an RPC_METHOD_RESPONSE. A non-nil error means argument
// decoding failed, which Server.dispatch turns into NO_MATCH.
type Dispatcher func(r *serializer.Reader) ([]byte, error)

// Server dispatches RPC_METHOD_REQUEST frames against a registered handler
// table, fans out publishes to subscribed weak sessions, and optionally
// announces itself to a registry as a provider. Connections are served
// through a reactor: each accepted session's reads and writes, and its
// heartbeat watchdog, run off the reactor's poll loop and timer wheel
// instead of a blocking goroutine and a stdlib timer per connection.
type Server struct {
	cfg Config
	log logging.Logger

	rct      *reactor.Reactor
	rctErr   error
	listener *tcp.Listener

	// callLimit bounds concurrent in-flight dispatch calls; nil means
	// unbounded.
	callLimit *cosync.Semaphore

	handlersMu sync.RWMutex
	handlers   map[string]Dispatcher

	subMu sync.Mutex
	subs  map[string][]*rpcsession.Session

	registry *rpcclient.Client

	openSessions atomic.Int64

	stopClean chan struct{}
	cleanDone chan struct{}
}

// New constructs a Server. Handlers may be registered before or after
// Start; Start's registry announcement only sees handlers registered
// before it runs.
func New(cfg Config) *Server {
	cfg.setDefaults()
	rct, err := reactor.New("rpcserver", cfg.Workers, cfg.Log,
		sched.WithMetrics(cfg.Metrics), sched.WithWorkerCPUs(cfg.WorkerCPUs))
	if err == nil {
		rct.SetMetrics(cfg.Metrics)
	}
	var limit *cosync.Semaphore
	if cfg.MaxConcurrentCalls > 0 {
		limit = cosync.NewSemaphore(cfg.MaxConcurrentCalls)
	}
	return &Server{
		cfg:       cfg,
		log:       cfg.Log,
		rct:       rct,
		rctErr:    err,
		callLimit: limit,
		handlers:  make(map[string]Dispatcher),
		subs:      make(map[string][]*rpcsession.Session),
		stopClean: make(chan struct{}),
		cleanDone: make(chan struct{}),
	}
}

// RegisterHandler installs a raw Dispatcher under name.
func (s *Server) RegisterHandler(name string, d Dispatcher) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[name] = d
}

func encodeResultPayload[T any](v T, callErr error) []byte {
	buf := bytebuf.Get()
	defer bytebuf.Put(buf)

	// T = rpcstatus.Void (struct{}) has no wire mapping in the generic
	// serializer — it goes through the fixed one-byte-placeholder shape
	// instead, per the "void handler hack" in rpcstatus.
	if vv, isVoid := any(v).(rpcstatus.Void); isVoid {
		var r rpcstatus.Result[rpcstatus.Void]
		if callErr != nil {
			r = rpcstatus.Err[rpcstatus.Void](rpcstatus.FAIL, callErr.Error())
		} else {
			r = rpcstatus.Ok(vv)
		}
		rpcstatus.EncodeResultVoid(buf, r)
		out := make([]byte, buf.Size())
		copy(out, buf.Bytes())
		return out
	}

	w := serializer.NewWriter(buf)
	var r rpcstatus.Result[T]
	if callErr != nil {
		r = rpcstatus.Err[T](rpcstatus.FAIL, callErr.Error())
	} else {
		r = rpcstatus.Ok(v)
	}
	_ = rpcstatus.EncodeResult(w, r)
	out := make([]byte, buf.Size())
	copy(out, buf.Bytes())
	return out
}

// Handler0 registers a zero-argument method.
func Handler0[R any](s *Server, name string, fn func() (R, error)) {
	s.RegisterHandler(name, func(_ *serializer.Reader) ([]byte, error) {
		v, err := fn()
		return encodeResultPayload(v, err), nil
	})
}

// Handler1 registers a one-argument method; zero1 selects A1's wire shape.
func Handler1[A1, R any](s *Server, name string, zero1 A1, fn func(A1) (R, error)) {
	s.RegisterHandler(name, func(r *serializer.Reader) ([]byte, error) {
		raw1, err := r.ReadInto(zero1)
		if err != nil {
			return nil, err
		}
		a1, _ := raw1.(A1)
		v, err := fn(a1)
		return encodeResultPayload(v, err), nil
	})
}

// Handler2 registers a two-argument method, e.g. an Add(int32, int32) shape.
func Handler2[A1, A2, R any](s *Server, name string, zero1 A1, zero2 A2, fn func(A1, A2) (R, error)) {
	s.RegisterHandler(name, func(r *serializer.Reader) ([]byte, error) {
		vals, err := r.ReadTupleInto(zero1, zero2)
		if err != nil {
			return nil, err
		}
		a1, _ := vals[0].(A1)
		a2, _ := vals[1].(A2)
		v, err := fn(a1, a2)
		return encodeResultPayload(v, err), nil
	})
}

// Handler3 registers a three-argument method.
func Handler3[A1, A2, A3, R any](s *Server, name string, zero1 A1, zero2 A2, zero3 A3, fn func(A1, A2, A3) (R, error)) {
	s.RegisterHandler(name, func(r *serializer.Reader) ([]byte, error) {
		vals, err := r.ReadTupleInto(zero1, zero2, zero3)
		if err != nil {
			return nil, err
		}
		a1, _ := vals[0].(A1)
		a2, _ := vals[1].(A2)
		a3, _ := vals[2].(A3)
		v, err := fn(a1, a2, a3)
		return encodeResultPayload(v, err), nil
	})
}

// Start binds every configured address, launches the accept loop, the
// subscriber cleaner, and — if a registry is configured — announces this
// server as a provider and registers every handler present at call time.
func (s *Server) Start() error {
	if s.rctErr != nil {
		return fmt.Errorf("rpcserver: reactor init: %w", s.rctErr)
	}
	s.rct.Start()

	ln, err := tcp.New(tcp.Config{
		Addrs:     s.cfg.Addrs,
		Handler:   s.handleConn,
		Scheduler: s.rct.Scheduler,
		Reactor:   s.rct,
		Log:       s.log,
	})
	if err != nil {
		return err
	}
	if err := ln.Start(); err != nil {
		return err
	}
	s.listener = ln

	if s.cfg.Debug != nil {
		s.cfg.Debug.RegisterProbe("sessions_open", func() any { return s.openSessions.Load() })
	}

	go s.cleanLoop()

	if s.cfg.RegistryAddr != "" {
		if err := s.joinRegistry(); err != nil {
			s.log.Warn("rpcserver: registry join failed, continuing standalone", logging.Err(err))
		}
	}
	return nil
}

func (s *Server) joinRegistry() error {
	port, err := s.listenPort()
	if err != nil {
		return err
	}
	c, err := rpcclient.Dial(s.cfg.RegistryAddr, rpcclient.Config{Log: s.log})
	if err != nil {
		return err
	}
	if err := c.SendRaw(wire.Frame{Type: wire.RPCProvider, Payload: wire.EncodeProviderPayload(uint32(port))}); err != nil {
		c.Close()
		return err
	}

	s.handlersMu.RLock()
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	s.handlersMu.RUnlock()

	for _, name := range names {
		f := wire.Frame{Type: wire.RPCServiceRegister, Payload: wire.EncodeServiceRegisterPayload(name)}
		resp, err := c.SendAndAwait(f, 5*time.Second)
		if err != nil {
			s.log.Warn("rpcserver: registering method failed", logging.String("method", name), logging.Err(err))
			continue
		}
		result, err := wire.DecodeServiceRegisterResponsePayload(resp.Payload)
		if err != nil || !result.IsSuccess() {
			s.log.Warn("rpcserver: registry rejected method", logging.String("method", name))
		}
	}
	s.registry = c
	return nil
}

func (s *Server) listenPort() (int, error) {
	addrs := s.listener.Addrs()
	if len(addrs) == 0 {
		return 0, fmt.Errorf("rpcserver: no bound listeners")
	}
	_, portStr, err := net.SplitHostPort(addrs[0].String())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}

func (s *Server) handleConn(conn net.Conn) {
	sess := rpcsession.NewHooked(conn, s.rct)
	watchdog := s.rct.Wheel().AddTimer(s.cfg.HeartbeatTimeout.Milliseconds(), func() { sess.Close() }, false)
	s.openSessions.Add(1)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RPCSessionsOpen.Set(float64(s.openSessions.Load()))
	}
	defer func() {
		watchdog.Cancel()
		sess.Close()
		s.openSessions.Add(-1)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RPCSessionsOpen.Set(float64(s.openSessions.Load()))
		}
	}()
	for {
		f, err := sess.Recv()
		if err != nil {
			return
		}
		watchdog.Reset(s.cfg.HeartbeatTimeout.Milliseconds(), true)
		s.handleFrame(sess, f)
	}
}

func (s *Server) handleFrame(sess *rpcsession.Session, f wire.Frame) {
	switch f.Type {
	case wire.HeartbeatPacket:
		_ = sess.Send(wire.Heartbeat())
	case wire.RPCMethodRequest:
		s.dispatch(sess, f)
	case wire.RPCSubscribeRequest:
		s.handleSubscribe(sess, f)
	case wire.RPCPublishResponse:
		// ack for a prior publish; nothing to do.
	default:
		s.log.Debug("rpcserver: unhandled frame type", logging.String("type", f.Type.String()))
	}
}

func (s *Server) dispatch(sess *rpcsession.Session, f wire.Frame) {
	if s.callLimit != nil {
		s.callLimit.Acquire()
		defer s.callLimit.Release()
	}
	start := time.Now()
	buf := bytebuf.FromBytes(f.Payload)
	method, err := buf.ReadString()
	if err != nil {
		return
	}

	s.handlersMu.RLock()
	d, ok := s.handlers[method]
	s.handlersMu.RUnlock()

	var payload []byte
	var code rpcstatus.Code
	switch {
	case !ok:
		payload = nil // rpcclient.Call reads a zero-length payload as NO_METHOD.
		code = rpcstatus.NoMethod
	default:
		p, derr := d(serializer.NewReader(buf))
		if derr != nil {
			payload = noMatchPayload(fmt.Sprintf("argument mismatch for %s: %v", method, derr))
			code = rpcstatus.NoMatch
		} else {
			payload = p
			code = rpcstatus.SUCCESS
		}
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RPCCallsTotal.WithLabelValues(method, code.String()).Inc()
		s.cfg.Metrics.RPCCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
	_ = sess.Send(wire.Frame{Type: wire.RPCMethodResponse, SequenceID: f.SequenceID, Payload: payload})
}

func noMatchPayload(msg string) []byte {
	buf := bytebuf.Get()
	defer bytebuf.Put(buf)
	buf.WriteUint8(uint8(rpcstatus.NoMatch))
	buf.WriteString(msg)
	out := make([]byte, buf.Size())
	copy(out, buf.Bytes())
	return out
}

func (s *Server) handleSubscribe(sess *rpcsession.Session, f wire.Frame) {
	key, err := wire.DecodeSubscribePayload(f.Payload)
	if err != nil {
		return
	}
	s.subMu.Lock()
	s.subs[key] = append(s.subs[key], sess)
	s.subMu.Unlock()

	resp := wire.EncodeSubscribeResponsePayload(rpcstatus.Ok(key))
	_ = sess.Send(wire.Frame{Type: wire.RPCSubscribeResponse, SequenceID: f.SequenceID, Payload: resp})
}

// Publish serializes (key, data) as an RPC_PUBLISH_REQUEST and sends it to
// every live session subscribed under key.
func (s *Server) Publish(key string, data []byte) {
	s.subMu.Lock()
	live := append([]*rpcsession.Session(nil), s.subs[key]...)
	s.subMu.Unlock()

	payload := wire.EncodePublishPayload(key, data)
	for _, sess := range live {
		if sess.Closed() {
			continue
		}
		_ = sess.Send(wire.Frame{Type: wire.RPCPublishRequest, Payload: payload})
	}
}

func (s *Server) cleanLoop() {
	defer close(s.cleanDone)
	t := time.NewTicker(s.cfg.CleanInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.pruneDeadSubscribers()
		case <-s.stopClean:
			return
		}
	}
}

func (s *Server) pruneDeadSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for key, sessions := range s.subs {
		live := sessions[:0]
		for _, sess := range sessions {
			if !sess.Closed() {
				live = append(live, sess)
			}
		}
		if len(live) == 0 {
			delete(s.subs, key)
		} else {
			s.subs[key] = live
		}
	}
}

// Shutdown stops the subscriber cleaner, the listener (no new
// connections), the registry link, and the reactor's worker pool, in that
// order.
func (s *Server) Shutdown() error {
	close(s.stopClean)
	<-s.cleanDone
	if s.listener != nil {
		s.listener.Close()
	}
	if s.registry != nil {
		s.registry.Close()
	}
	if s.rct != nil {
		s.rct.Stop()
		s.rct.Close()
	}
	return nil
}

// Addrs reports the server's actual bound addresses as "host:port" strings,
// useful when Config.Addrs used an ephemeral port ("127.0.0.1:0").
func (s *Server) Addrs() []string {
	if s.listener == nil {
		return nil
	}
	netAddrs := s.listener.Addrs()
	out := make([]string, len(netAddrs))
	for i, a := range netAddrs {
		out[i] = a.String()
	}
	return out
}

// ServiceNames returns the currently registered method names, mostly for
// tests and diagnostics.
func (s *Server) ServiceNames() []string {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	return names
}
