// File: registry/registry.go
// Package registry implements an RPC service registry: a forward
// multimap serviceName -> providerAddress, an inverse index
// providerAddress -> services (the authoritative view for disconnect
// cleanup), a subscriber multimap for up/down delta fan-out, and a
// per-session heartbeat watchdog.
//
// Grounded on rpcserver/server.go's per-connection accept-loop and
// subscriber-table shape (this package is the same "handle a session,
// watch it for heartbeats, fan publishes out to subscribers" pattern
// specialized to registry semantics instead of method dispatch) and on
// the reactor's forward/inverse descriptor bookkeeping style for the
// service/provider maps. Sessions and their heartbeat watchdogs run off a
// Reactor exactly as rpcserver's do.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package registry

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/momentics/hioload-ws/control"
	"github.com/momentics/hioload-ws/logging"
	"github.com/momentics/hioload-ws/reactor"
	"github.com/momentics/hioload-ws/rpcsession"
	"github.com/momentics/hioload-ws/rpcstatus"
	"github.com/momentics/hioload-ws/sched"
	"github.com/momentics/hioload-ws/transport/tcp"
	"github.com/momentics/hioload-ws/wire"
)

// SubscribeKeyPrefix is prepended to a service name to form its
// up/down-delta subscription topic.
const SubscribeKeyPrefix = "[[rpc service subscribe]]"

// SubscribeKey builds the subscription topic for service.
func SubscribeKey(service string) string { return SubscribeKeyPrefix + service }

// DefaultHeartbeatTimeout is the per-session watchdog default, matching
// the rpc.registry.heartbeat_timeout config key's default of 40s.
const DefaultHeartbeatTimeout = 40 * time.Second

// DefaultCleanInterval matches rpcserver's subscriber-table pruning cadence.
const DefaultCleanInterval = 5 * time.Second

// Config configures a Registry.
type Config struct {
	Addrs            []string
	HeartbeatTimeout time.Duration
	CleanInterval    time.Duration
	Workers          int
	// WorkerCPUs optionally pins each scheduler worker to a logical CPU.
	WorkerCPUs       []int
	Log              logging.Logger
	// Metrics, if set, receives provider and subscriber counts as they
	// change. Nil disables metrics entirely.
	Metrics *control.MetricsRegistry
	// Debug, if set, receives "services" and "providers_total" probes. Nil
	// disables probe registration.
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

// providerEntry is one (service, address) pair tracked in both the forward
// map and the inverse index. id is a per-registration instance identifier,
// useful for correlating registry log lines with a specific registration
// event when the same address re-registers after a reconnect.
type providerEntry struct {
	id      uuid.UUID
	service string
	address string
}

// Registry is the well-known rendezvous server: providers register their
// address under a service name, consumers discover and subscribe to
// up/down deltas.
type Registry struct {
	cfg Config
	log logging.Logger

	rct      *reactor.Reactor
	rctErr   error
	listener *tcp.Listener

	mu       sync.Mutex
	forward  map[string][]string          // service -> [address]
	inverse  map[string][]*providerEntry  // address -> entries registered under it

	subMu sync.Mutex
	subs  map[string][]*rpcsession.Session // subscribe key -> weak sessions

	stopClean chan struct{}
	cleanDone chan struct{}
}

// New constructs a Registry.
func New(cfg Config) *Registry {
	cfg.setDefaults()
	rct, err := reactor.New("registry", cfg.Workers, cfg.Log,
		sched.WithMetrics(cfg.Metrics), sched.WithWorkerCPUs(cfg.WorkerCPUs))
	if err == nil {
		rct.SetMetrics(cfg.Metrics)
	}
	return &Registry{
		cfg:       cfg,
		log:       cfg.Log,
		rct:       rct,
		rctErr:    err,
		forward:   make(map[string][]string),
		inverse:   make(map[string][]*providerEntry),
		subs:      make(map[string][]*rpcsession.Session),
		stopClean: make(chan struct{}),
		cleanDone: make(chan struct{}),
	}
}

// Start binds every configured address and begins accepting sessions.
func (r *Registry) Start() error {
	if r.rctErr != nil {
		return fmt.Errorf("registry: reactor init: %w", r.rctErr)
	}
	r.rct.Start()
	ln, err := tcp.New(tcp.Config{
		Addrs:     r.cfg.Addrs,
		Handler:   r.handleConn,
		Scheduler: r.rct.Scheduler,
		Reactor:   r.rct,
		Log:       r.log,
	})
	if err != nil {
		return err
	}
	if err := ln.Start(); err != nil {
		return err
	}
	r.listener = ln

	if r.cfg.Debug != nil {
		r.cfg.Debug.RegisterProbe("services", func() any { return r.Services() })
		r.cfg.Debug.RegisterProbe("providers_total", func() any {
			r.mu.Lock()
			defer r.mu.Unlock()
			total := 0
			for _, addrs := range r.forward {
				total += len(addrs)
			}
			return total
		})
	}

	go r.cleanLoop()
	return nil
}

// Addrs reports the registry's bound addresses.
func (r *Registry) Addrs() []string {
	if r.listener == nil {
		return nil
	}
	netAddrs := r.listener.Addrs()
	out := make([]string, len(netAddrs))
	for i, a := range netAddrs {
		out[i] = a.String()
	}
	return out
}

// Shutdown stops accepting connections and the cleaner fiber.
func (r *Registry) Shutdown() error {
	close(r.stopClean)
	<-r.cleanDone
	if r.listener != nil {
		r.listener.Close()
	}
	if r.rct != nil {
		r.rct.Stop()
		r.rct.Close()
	}
	return nil
}

// sessionState is the per-session state machine: at most one provider
// address, established the first time RPC_PROVIDER arrives.
type sessionState struct {
	remoteIP        string
	providerAddress string // "" until RPC_PROVIDER is received
}

func (r *Registry) handleConn(conn net.Conn) {
	sess := rpcsession.NewHooked(conn, r.rct)
	st := &sessionState{remoteIP: hostOf(conn.RemoteAddr())}
	watchdog := r.rct.Wheel().AddTimer(r.cfg.HeartbeatTimeout.Milliseconds(), func() { sess.Close() }, false)

	defer func() {
		watchdog.Cancel()
		sess.Close()
		r.onDisconnect(st)
	}()

	for {
		f, err := sess.Recv()
		if err != nil {
			return
		}
		watchdog.Reset(r.cfg.HeartbeatTimeout.Milliseconds(), true)
		r.handleFrame(sess, st, f)
	}
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func (r *Registry) handleFrame(sess *rpcsession.Session, st *sessionState, f wire.Frame) {
	switch f.Type {
	case wire.HeartbeatPacket:
		_ = sess.Send(wire.Heartbeat())
	case wire.RPCProvider:
		r.handleProvider(sess, st, f)
	case wire.RPCServiceRegister:
		r.handleRegister(sess, st, f)
	case wire.RPCServiceDiscover:
		r.handleDiscover(sess, f)
	case wire.RPCSubscribeRequest:
		r.handleSubscribe(sess, f)
	case wire.RPCPublishResponse:
		// ack for a prior publish; nothing to do.
	default:
		r.log.Debug("registry: unhandled frame type", logging.String("type", f.Type.String()))
	}
}

func (r *Registry) handleProvider(sess *rpcsession.Session, st *sessionState, f wire.Frame) {
	port, err := wire.DecodeProviderPayload(f.Payload)
	if err != nil {
		return
	}
	st.providerAddress = fmt.Sprintf("%s:%d", st.remoteIP, port)
}

func (r *Registry) handleRegister(sess *rpcsession.Session, st *sessionState, f wire.Frame) {
	service, err := wire.DecodeServiceRegisterPayload(f.Payload)
	if err != nil {
		return
	}
	if st.providerAddress == "" {
		resp := wire.EncodeServiceRegisterResponsePayload(rpcstatus.Err[string](rpcstatus.FAIL, "no provider address announced"))
		_ = sess.Send(wire.Frame{Type: wire.RPCServiceRegisterResponse, SequenceID: f.SequenceID, Payload: resp})
		return
	}

	entry := &providerEntry{id: uuid.New(), service: service, address: st.providerAddress}
	r.mu.Lock()
	r.forward[service] = append(r.forward[service], st.providerAddress)
	r.inverse[st.providerAddress] = append(r.inverse[st.providerAddress], entry)
	r.mu.Unlock()

	r.log.Debug("registry: registered provider",
		logging.String("service", service),
		logging.String("address", st.providerAddress),
		logging.String("registration_id", entry.id.String()))

	resp := wire.EncodeServiceRegisterResponsePayload(rpcstatus.Ok(service))
	_ = sess.Send(wire.Frame{Type: wire.RPCServiceRegisterResponse, SequenceID: f.SequenceID, Payload: resp})

	r.publish(SubscribeKey(service), wire.EncodeServiceDelta(true, st.providerAddress))
	r.reportProviderCount()
}

func (r *Registry) handleDiscover(sess *rpcsession.Session, f wire.Frame) {
	service, err := wire.DecodeServiceDiscoverPayload(f.Payload)
	if err != nil {
		return
	}

	r.mu.Lock()
	addrs := append([]string(nil), r.forward[service]...)
	r.mu.Unlock()

	var providers []rpcstatus.Result[string]
	if len(addrs) == 0 {
		providers = []rpcstatus.Result[string]{
			rpcstatus.Err[string](rpcstatus.NoMethod, fmt.Sprintf("discover service: %s", service)),
		}
	} else {
		providers = make([]rpcstatus.Result[string], len(addrs))
		for i, addr := range addrs {
			providers[i] = rpcstatus.Ok(addr)
		}
	}

	resp := wire.EncodeServiceDiscoverResponsePayload(service, providers)
	_ = sess.Send(wire.Frame{Type: wire.RPCServiceDiscoverResponse, SequenceID: f.SequenceID, Payload: resp})
}

func (r *Registry) handleSubscribe(sess *rpcsession.Session, f wire.Frame) {
	key, err := wire.DecodeSubscribePayload(f.Payload)
	if err != nil {
		return
	}
	r.subMu.Lock()
	r.subs[key] = append(r.subs[key], sess)
	r.subMu.Unlock()

	resp := wire.EncodeSubscribeResponsePayload(rpcstatus.Ok(key))
	_ = sess.Send(wire.Frame{Type: wire.RPCSubscribeResponse, SequenceID: f.SequenceID, Payload: resp})
	r.reportSubscriberCount()
}

func (r *Registry) publish(key string, data []byte) {
	r.subMu.Lock()
	live := append([]*rpcsession.Session(nil), r.subs[key]...)
	r.subMu.Unlock()

	payload := wire.EncodePublishPayload(key, data)
	for _, sess := range live {
		if sess.Closed() {
			continue
		}
		_ = sess.Send(wire.Frame{Type: wire.RPCPublishRequest, Payload: payload})
	}
}

// onDisconnect: the inverse index is the authoritative view for cleanup.
// Every service iterator registered under
// the session's provider address is removed from the forward map, the
// inverse entry is erased, and a "down" delta is published per affected
// service — only after removal succeeds.
func (r *Registry) onDisconnect(st *sessionState) {
	if st.providerAddress == "" {
		return
	}

	r.mu.Lock()
	entries := r.inverse[st.providerAddress]
	delete(r.inverse, st.providerAddress)
	affected := make([]string, 0, len(entries))
	for _, e := range entries {
		affected = append(affected, e.service)
		r.forward[e.service] = removeAddr(r.forward[e.service], st.providerAddress)
		if len(r.forward[e.service]) == 0 {
			delete(r.forward, e.service)
		}
	}
	r.mu.Unlock()

	for _, service := range affected {
		r.publish(SubscribeKey(service), wire.EncodeServiceDelta(false, st.providerAddress))
	}
	r.reportProviderCount()
}

// reportProviderCount pushes the total number of registered (service,
// address) pairs to the metrics registry, if one is configured.
func (r *Registry) reportProviderCount() {
	if r.cfg.Metrics == nil {
		return
	}
	r.mu.Lock()
	total := 0
	for _, addrs := range r.forward {
		total += len(addrs)
	}
	r.mu.Unlock()
	r.cfg.Metrics.RegistryProviders.Set(float64(total))
}

// reportSubscriberCount pushes the total number of live subscriber
// sessions across every topic to the metrics registry, if one is
// configured.
func (r *Registry) reportSubscriberCount() {
	if r.cfg.Metrics == nil {
		return
	}
	r.subMu.Lock()
	total := 0
	for _, sessions := range r.subs {
		total += len(sessions)
	}
	r.subMu.Unlock()
	r.cfg.Metrics.RegistrySubscribers.Set(float64(total))
}

func removeAddr(addrs []string, target string) []string {
	return slices.DeleteFunc(addrs, func(a string) bool { return a == target })
}

func (r *Registry) cleanLoop() {
	defer close(r.cleanDone)
	t := time.NewTicker(r.cfg.CleanInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			r.pruneDeadSubscribers()
		case <-r.stopClean:
			return
		}
	}
}

func (r *Registry) pruneDeadSubscribers() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for key, sessions := range r.subs {
		live := sessions[:0]
		for _, sess := range sessions {
			if !sess.Closed() {
				live = append(live, sess)
			}
		}
		if len(live) == 0 {
			delete(r.subs, key)
		} else {
			r.subs[key] = live
		}
	}
	if r.cfg.Metrics != nil {
		total := 0
		for _, sessions := range r.subs {
			total += len(sessions)
		}
		r.cfg.Metrics.RegistrySubscribers.Set(float64(total))
	}
}

// Providers returns a snapshot of the current address list for service,
// mostly for tests and diagnostics.
func (r *Registry) Providers(service string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.forward[service]...)
}

// Services returns a snapshot of every service name currently registered.
func (r *Registry) Services() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Keys(r.forward)
}
