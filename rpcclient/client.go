// File: rpcclient/client.go
// Package rpcclient implements an RPC client: one connection to one
// server, correlating responses with pending calls by sequence id, with
// a dedicated send goroutine draining an outbound channel, a dedicated recv
// goroutine routing frames, an optional auto-heartbeat, and per-topic
// subscription callbacks.
//
// Grounded on client/client.go's ClientConfig/lifecycle-callback shape
// (config struct, atomic connected/closed flags, background goroutines
// standing in for a dedicated send fiber and an inbound fiber — Go
// goroutines already are the M:N stackful runtime, so a plain goroutine
// pair is the idiomatic rendering of that split). Each Client owns its own
// single-worker Reactor: response-correlation timeouts and the
// auto-heartbeat cadence run off its timer wheel, and the session's reads
// and writes run off its readiness loop, the same way rpcserver's accepted
// connections do. A platform where the reactor cannot be constructed falls
// back to plain blocking I/O and stdlib timers.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package rpcclient

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-ws/cosync"
	"github.com/momentics/hioload-ws/logging"
	"github.com/momentics/hioload-ws/reactor"
	"github.com/momentics/hioload-ws/rpcsession"
	"github.com/momentics/hioload-ws/rpcstatus"
	"github.com/momentics/hioload-ws/serializer"
	"github.com/momentics/hioload-ws/timerwheel"
	"github.com/momentics/hioload-ws/wire"

	"github.com/momentics/hioload-ws/bytebuf"
)

// ErrClosed is returned by every operation once the client has closed,
// reported to callers as the CLOSED status for a dead transport.
var ErrClosed = errors.New("rpcclient: closed")

// DefaultHeartbeatInterval is the client's default auto-heartbeat cadence.
const DefaultHeartbeatInterval = 30 * time.Second

// Config configures a Client.
type Config struct {
	// ChannelCapacity sizes the outbound frame channel; corresponds to the
	// rpc.client.channel_capacity config key, default 1024.
	ChannelCapacity int
	// HeartbeatInterval is the auto-heartbeat cadence; 0 selects
	// DefaultHeartbeatInterval and a negative value disables it.
	HeartbeatInterval time.Duration
	Log               logging.Logger
}

type pendingResult struct {
	frame wire.Frame
}

// Client is one connection to one RPC server.
type Client struct {
	session *rpcsession.Session
	rct     *reactor.Reactor
	log     logging.Logger

	seq      uint32
	pendMu   sync.Mutex
	pending  map[uint32]chan pendingResult

	subMu sync.Mutex
	subs  map[string]func([]byte)

	// outbound is a cosync.Channel rather than a plain Go channel so Close
	// can shut it down from any goroutine without racing a concurrent Send
	// into a "send on closed channel" panic.
	outbound cosync.Channel[wire.Frame]

	heartbeatInterval time.Duration
	overdue           atomic.Bool

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Dial connects to addr and starts the client's background goroutines.
func Dial(addr string, cfg Config) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newClient(conn, cfg), nil
}

// New wraps an already-established connection as a Client.
func New(conn net.Conn, cfg Config) *Client {
	return newClient(conn, cfg)
}

func newClient(conn net.Conn, cfg Config) *Client {
	if cfg.ChannelCapacity <= 0 {
		cfg.ChannelCapacity = 1024
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	log := cfg.Log
	if log == nil {
		log = logging.Nop()
	}
	rct, err := reactor.New("rpcclient", 1, log)
	sess := rpcsession.New(conn)
	if err != nil {
		log.Debug("rpcclient: reactor unavailable, using blocking I/O and stdlib timers", logging.Err(err))
		rct = nil
	} else {
		rct.Start()
		sess = rpcsession.NewHooked(conn, rct)
	}
	c := &Client{
		session:           sess,
		rct:               rct,
		log:               log,
		pending:           make(map[uint32]chan pendingResult),
		subs:              make(map[string]func([]byte)),
		outbound:          cosync.NewChannel[wire.Frame](cfg.ChannelCapacity),
		heartbeatInterval: cfg.HeartbeatInterval,
		closed:            make(chan struct{}),
	}
	c.wg.Add(2)
	go c.sendLoop()
	go c.recvLoop()
	if c.heartbeatInterval > 0 {
		c.wg.Add(1)
		go c.heartbeatLoop()
	}
	return c
}

func (c *Client) nextSeq() uint32 {
	for {
		v := atomic.AddUint32(&c.seq, 1)
		if v != 0 {
			return v
		}
	}
}

func (c *Client) sendLoop() {
	defer c.wg.Done()
	for {
		f, err := c.outbound.Recv()
		if err != nil {
			return
		}
		if err := c.session.Send(f); err != nil {
			c.Close()
			return
		}
	}
}

func (c *Client) recvLoop() {
	defer c.wg.Done()
	for {
		f, err := c.session.Recv()
		if err != nil {
			c.Close()
			return
		}
		c.route(f)
	}
}

func (c *Client) route(f wire.Frame) {
	switch f.Type {
	case wire.HeartbeatPacket:
		c.overdue.Store(false)
	case wire.RPCMethodResponse, wire.RPCSubscribeResponse, wire.RPCServiceRegisterResponse, wire.RPCServiceDiscoverResponse:
		c.deliver(f)
	case wire.RPCPublishRequest:
		c.dispatchPublish(f)
	default:
		c.log.Debug("rpcclient: unhandled frame type", logging.String("type", f.Type.String()))
	}
}

func (c *Client) deliver(f wire.Frame) {
	c.pendMu.Lock()
	ch, ok := c.pending[f.SequenceID]
	if ok {
		delete(c.pending, f.SequenceID)
	}
	c.pendMu.Unlock()
	if ok {
		ch <- pendingResult{frame: f}
	}
}

func (c *Client) dispatchPublish(f wire.Frame) {
	key, data, err := wire.DecodePublishPayload(f.Payload)
	if err != nil {
		return
	}
	c.subMu.Lock()
	cb, ok := c.subs[key]
	c.subMu.Unlock()
	if ok {
		go cb(data)
	}
	ack := wire.Frame{Type: wire.RPCPublishResponse, SequenceID: f.SequenceID}
	_ = c.outbound.Send(ack)
}

func (c *Client) heartbeatLoop() {
	defer c.wg.Done()
	if c.rct != nil {
		c.heartbeatLoopReactor()
		return
	}
	c.heartbeatLoopTicker()
}

func (c *Client) heartbeatLoopTicker() {
	t := time.NewTicker(c.heartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if c.heartbeatTick() {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// heartbeatLoopReactor drives the auto-heartbeat off the client's own timer
// wheel instead of a stdlib ticker, the recurring timer cancelling itself
// once the peer is declared dead.
func (c *Client) heartbeatLoopReactor() {
	dead := make(chan struct{})
	var timer *timerwheel.Timer
	timer = c.rct.Wheel().AddTimer(c.heartbeatInterval.Milliseconds(), func() {
		if c.heartbeatTick() {
			timer.Cancel()
			close(dead)
		}
	}, true)
	select {
	case <-dead:
	case <-c.closed:
		timer.Cancel()
	}
}

// heartbeatTick runs one heartbeat cycle and reports whether the peer was
// declared dead (and the client closed) as a result.
func (c *Client) heartbeatTick() bool {
	if c.overdue.Load() {
		c.log.Warn("rpcclient: heartbeat overdue, declaring server dead")
		c.Close()
		return true
	}
	c.overdue.Store(true)
	_ = c.outbound.Send(wire.Heartbeat())
	return false
}

// sendAndAwait allocates a sequence id, registers a pending reply slot,
// enqueues f (with the id filled in) and waits for a matching response, a
// close, or timeout (0 == wait forever).
func (c *Client) sendAndAwait(f wire.Frame, timeout time.Duration) (wire.Frame, error) {
	seq := c.nextSeq()
	f.SequenceID = seq
	ch := make(chan pendingResult, 1)

	c.pendMu.Lock()
	c.pending[seq] = ch
	c.pendMu.Unlock()

	cleanup := func() {
		c.pendMu.Lock()
		delete(c.pending, seq)
		c.pendMu.Unlock()
	}

	if err := c.outbound.Send(f); err != nil {
		cleanup()
		return wire.Frame{}, ErrClosed
	}

	if timeout <= 0 {
		select {
		case r := <-ch:
			return r.frame, nil
		case <-c.closed:
			cleanup()
			return wire.Frame{}, ErrClosed
		}
	}

	if c.rct != nil {
		timedOut := make(chan struct{}, 1)
		wheelTimer := c.rct.Wheel().AddTimer(timeout.Milliseconds(), func() {
			select {
			case timedOut <- struct{}{}:
			default:
			}
		}, false)
		defer wheelTimer.Cancel()
		select {
		case r := <-ch:
			return r.frame, nil
		case <-timedOut:
			cleanup()
			return wire.Frame{}, ErrTimeout
		case <-c.closed:
			cleanup()
			return wire.Frame{}, ErrClosed
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.frame, nil
	case <-timer.C:
		cleanup()
		return wire.Frame{}, ErrTimeout
	case <-c.closed:
		cleanup()
		return wire.Frame{}, ErrClosed
	}
}

// ErrTimeout is returned by Call when the per-call timeout elapses before a
// response arrives.
var ErrTimeout = errors.New("rpcclient: call timeout")

// Call performs a synchronous unary call: serialize (method, args), await
// the correlated RPC_METHOD_RESPONSE, and decode a Result[T]. zero
// establishes T's wire shape; timeout <= 0 waits forever.
func Call[T any](c *Client, method string, zero T, timeout time.Duration, args ...any) rpcstatus.Result[T] {
	buf := bytebuf.Get()
	buf.WriteString(method)
	w := serializer.NewWriter(buf)
	if err := w.WriteTuple(args...); err != nil {
		bytebuf.Put(buf)
		return rpcstatus.Err[T](rpcstatus.NoMatch, err.Error())
	}
	payload := make([]byte, buf.Size())
	copy(payload, buf.Bytes())
	bytebuf.Put(buf)

	f, err := c.sendAndAwait(wire.Frame{Type: wire.RPCMethodRequest, Payload: payload}, timeout)
	if err != nil {
		return callErrResult[T](err)
	}
	if len(f.Payload) == 0 {
		return rpcstatus.Err[T](rpcstatus.NoMethod, fmt.Sprintf("no such method: %s", method))
	}
	if _, isVoid := any(zero).(rpcstatus.Void); isVoid {
		rv, err := rpcstatus.DecodeResultVoid(bytebuf.FromBytes(f.Payload))
		if err != nil {
			return rpcstatus.Err[T](rpcstatus.NoMatch, err.Error())
		}
		r, _ := any(rv).(rpcstatus.Result[T])
		return r
	}
	r, err := rpcstatus.DecodeResult(serializer.NewReader(bytebuf.FromBytes(f.Payload)), zero)
	if err != nil {
		return rpcstatus.Err[T](rpcstatus.NoMatch, err.Error())
	}
	return r
}

func callErrResult[T any](err error) rpcstatus.Result[T] {
	switch {
	case errors.Is(err, ErrTimeout):
		return rpcstatus.Err[T](rpcstatus.Timeout, "call timeout")
	default:
		return rpcstatus.Err[T](rpcstatus.Closed, "transport closed")
	}
}

// AsyncCall schedules Call on a new goroutine and returns a channel that
// receives its single result.
func AsyncCall[T any](c *Client, method string, zero T, timeout time.Duration, args ...any) <-chan rpcstatus.Result[T] {
	out := make(chan rpcstatus.Result[T], 1)
	go func() {
		out <- Call(c, method, zero, timeout, args...)
	}()
	return out
}

// CallbackCall performs Call on a new goroutine and invokes cb with the
// outcome.
func CallbackCall[T any](c *Client, method string, zero T, timeout time.Duration, cb func(rpcstatus.Result[T]), args ...any) {
	go cb(Call(c, method, zero, timeout, args...))
}

// Subscribe registers cb for key and sends RPC_SUBSCRIBE_REQUEST, blocking
// until the registry/server acknowledges.
func (c *Client) Subscribe(key string, cb func([]byte)) error {
	c.subMu.Lock()
	c.subs[key] = cb
	c.subMu.Unlock()

	f, err := c.sendAndAwait(wire.Frame{Type: wire.RPCSubscribeRequest, Payload: wire.EncodeSubscribePayload(key)}, 0)
	if err != nil {
		return err
	}
	resp, err := wire.DecodeSubscribeResponsePayload(f.Payload)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("rpcclient: subscribe %q: %s", key, resp.Message)
	}
	return nil
}

// SendRaw enqueues f without waiting for any reply, for fire-and-forget
// messages (registration announcements, heartbeats sent by non-standard
// callers).
func (c *Client) SendRaw(f wire.Frame) error {
	if err := c.outbound.Send(f); err != nil {
		return ErrClosed
	}
	return nil
}

// SendAndAwait exposes the correlated request/response primitive for
// callers outside this package that need custom message types (rpcserver's
// registry connection, rpcpool's discovery calls).
func (c *Client) SendAndAwait(f wire.Frame, timeout time.Duration) (wire.Frame, error) {
	return c.sendAndAwait(f, timeout)
}

// RemoteAddr returns the underlying connection's remote address.
func (c *Client) RemoteAddr() net.Addr { return c.session.RemoteAddr() }

// Close closes the session and wakes every pending call with ErrClosed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.outbound.Close()
		err = c.session.Close()
		if c.rct != nil {
			c.rct.Stop()
			c.rct.Close()
		}
		// Pending calls wake on c.closed and report ErrClosed; nothing is
		// sent on their reply slots, where an empty frame would read as a
		// zero-length (NO_METHOD) response.
		c.pendMu.Lock()
		c.pending = make(map[uint32]chan pendingResult)
		c.pendMu.Unlock()
	})
	return err
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
