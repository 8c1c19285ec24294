// File: rpcpool/pool.go
// Package rpcpool implements a connection pool: a registry-aware client
// cache that discovers a service's providers on first use, subscribes to
// its up/down deltas to keep the address cache current, and picks an
// address per call using a configurable route strategy.
//
// Grounded on pool/objpool.go's generic Get/Put pool shape (the live
// client cache here plays the same "reusable resource keyed by identity"
// role, bounded and evicted instead of unbounded like sync.Pool) and on
// rpcclient/rpcserver's already-built session plumbing, which this
// package composes rather than reimplements: discovery and subscription
// both ride an ordinary rpcclient.Client dialed to the registry.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package rpcpool

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spaolacci/murmur3"

	"github.com/momentics/hioload-ws/logging"
	"github.com/momentics/hioload-ws/registry"
	"github.com/momentics/hioload-ws/rpcclient"
	"github.com/momentics/hioload-ws/rpcstatus"
	"github.com/momentics/hioload-ws/wire"
)

// RouteStrategy selects which address to dial when a service has more than
// one live provider.
type RouteStrategy int

const (
	// RouteRandom picks a uniformly random address per call.
	RouteRandom RouteStrategy = iota
	// RoutePolling round-robins across the current address list.
	RoutePolling
	// RouteHashIP picks a deterministic murmur3 hash of the service name
	// modulo the address count, so repeated calls to the same service from
	// the same pool land on the same provider until the address list changes.
	RouteHashIP
)

// ErrNoProviders is returned when discovery reports no live providers for a
// service.
var ErrNoProviders = errors.New("rpcpool: no providers for service")

// DefaultDiscoverTimeout bounds how long a discovery round-trip to the
// registry may take.
const DefaultDiscoverTimeout = 5 * time.Second

// DefaultLiveClientCacheSize bounds the number of concurrently open
// provider connections the pool keeps warm.
const DefaultLiveClientCacheSize = 256

// Config configures a Pool.
type Config struct {
	RegistryAddr        string
	Route               RouteStrategy
	DiscoverTimeout      time.Duration
	LiveClientCacheSize int
	Log                 logging.Logger
}

func (c *Config) setDefaults() {
	if c.DiscoverTimeout == 0 {
		c.DiscoverTimeout = DefaultDiscoverTimeout
	}
	if c.LiveClientCacheSize == 0 {
		c.LiveClientCacheSize = DefaultLiveClientCacheSize
	}
	if c.Log == nil {
		c.Log = logging.Nop()
	}
}

// Pool is a registry-aware, service-name-keyed RPC client cache.
type Pool struct {
	cfg Config
	log logging.Logger

	regMu    sync.Mutex
	registry *rpcclient.Client

	mu         sync.Mutex
	addrCache  map[string][]string
	subscribed map[string]bool
	pollIndex  map[string]int
	svcLocks   map[string]*sync.Mutex

	live *lru.Cache[string, *rpcclient.Client]
}

// New constructs a Pool. The registry connection and any provider
// connections are dialed lazily, on first use.
func New(cfg Config) *Pool {
	cfg.setDefaults()
	live, _ := lru.NewWithEvict[string, *rpcclient.Client](cfg.LiveClientCacheSize, func(_ string, c *rpcclient.Client) {
		c.Close()
	})
	return &Pool{
		cfg:        cfg,
		log:        cfg.Log,
		addrCache:  make(map[string][]string),
		subscribed: make(map[string]bool),
		pollIndex:  make(map[string]int),
		svcLocks:   make(map[string]*sync.Mutex),
		live:       live,
	}
}

// Close closes the registry connection and every cached provider client.
func (p *Pool) Close() error {
	p.regMu.Lock()
	if p.registry != nil {
		p.registry.Close()
	}
	p.regMu.Unlock()
	p.live.Purge()
	return nil
}

func (p *Pool) serviceLock(service string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.svcLocks[service]
	if !ok {
		l = &sync.Mutex{}
		p.svcLocks[service] = l
	}
	return l
}

func (p *Pool) registryConn() (*rpcclient.Client, error) {
	p.regMu.Lock()
	defer p.regMu.Unlock()
	if p.registry != nil && !p.registry.Closed() {
		return p.registry, nil
	}
	c, err := rpcclient.Dial(p.cfg.RegistryAddr, rpcclient.Config{Log: p.log})
	if err != nil {
		return nil, err
	}
	p.registry = c
	return c, nil
}

// discover sends RPC_SERVICE_DISCOVER, caches the resulting address list,
// and — the first time a service is discovered — subscribes to its
// up/down deltas.
func (p *Pool) discover(service string) ([]string, error) {
	lock := p.serviceLock(service)
	lock.Lock()
	defer lock.Unlock()

	p.mu.Lock()
	if addrs := p.addrCache[service]; len(addrs) > 0 {
		p.mu.Unlock()
		return addrs, nil
	}
	p.mu.Unlock()

	reg, err := p.registryConn()
	if err != nil {
		return nil, err
	}

	f := wire.Frame{Type: wire.RPCServiceDiscover, Payload: wire.EncodeServiceDiscoverPayload(service)}
	resp, err := reg.SendAndAwait(f, p.cfg.DiscoverTimeout)
	if err != nil {
		return nil, err
	}
	_, providers, err := wire.DecodeServiceDiscoverResponsePayload(resp.Payload)
	if err != nil {
		return nil, err
	}
	if len(providers) == 1 && providers[0].Code == rpcstatus.NoMethod {
		return nil, ErrNoProviders
	}

	addrs := make([]string, 0, len(providers))
	for _, pr := range providers {
		if pr.IsSuccess() {
			addrs = append(addrs, pr.Value)
		}
	}
	if len(addrs) == 0 {
		return nil, ErrNoProviders
	}

	p.mu.Lock()
	p.addrCache[service] = addrs
	firstTime := !p.subscribed[service]
	p.subscribed[service] = true
	p.mu.Unlock()

	if firstTime {
		if err := reg.Subscribe(registry.SubscribeKey(service), func(data []byte) { p.onDelta(service, data) }); err != nil {
			p.log.Warn("rpcpool: subscribe failed", logging.String("service", service), logging.Err(err))
		}
	}
	return addrs, nil
}

func (p *Pool) onDelta(service string, data []byte) {
	up, addr, err := wire.DecodeServiceDelta(data)
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if up {
		for _, a := range p.addrCache[service] {
			if a == addr {
				return
			}
		}
		p.addrCache[service] = append(p.addrCache[service], addr)
		return
	}
	addrs := p.addrCache[service]
	out := addrs[:0]
	for _, a := range addrs {
		if a != addr {
			out = append(out, a)
		}
	}
	p.addrCache[service] = out
	p.live.Remove(addr)
}

func (p *Pool) pickAddress(service string, addrs []string) string {
	switch p.cfg.Route {
	case RoutePolling:
		p.mu.Lock()
		idx := p.pollIndex[service]
		p.pollIndex[service] = idx + 1
		p.mu.Unlock()
		return addrs[idx%len(addrs)]
	case RouteHashIP:
		h := murmur3.Sum32([]byte(service))
		return addrs[int(h%uint32(len(addrs)))]
	default:
		return addrs[rand.Intn(len(addrs))]
	}
}

func (p *Pool) evict(service, addr string) {
	p.mu.Lock()
	addrs := p.addrCache[service]
	out := addrs[:0]
	for _, a := range addrs {
		if a != addr {
			out = append(out, a)
		}
	}
	p.addrCache[service] = out
	p.mu.Unlock()
	p.live.Remove(addr)
}

// clientFor reuses a live client if one exists for the picked address,
// otherwise dials a fresh one and inserts it into the live cache.
func (p *Pool) clientFor(service string) (*rpcclient.Client, string, error) {
	p.mu.Lock()
	addrs := p.addrCache[service]
	p.mu.Unlock()

	if len(addrs) == 0 {
		var err error
		addrs, err = p.discover(service)
		if err != nil {
			return nil, "", err
		}
	}

	addr := p.pickAddress(service, addrs)
	if c, ok := p.live.Get(addr); ok && !c.Closed() {
		return c, addr, nil
	}

	c, err := rpcclient.Dial(addr, rpcclient.Config{Log: p.log})
	if err != nil {
		return nil, "", err
	}
	p.live.Add(addr, c)
	return c, addr, nil
}

// Call performs a routed call: reuse or dial a client for service, call
// method through it, and retry once against a fresh address if the first
// attempt observes a CLOSED transport (the cached client's address is
// evicted before the retry).
func Call[T any](p *Pool, service, method string, zero T, timeout time.Duration, args ...any) rpcstatus.Result[T] {
	for attempt := 0; attempt < 2; attempt++ {
		client, addr, err := p.clientFor(service)
		if err != nil {
			if errors.Is(err, ErrNoProviders) {
				return rpcstatus.Err[T](rpcstatus.NoMethod, err.Error())
			}
			return rpcstatus.Err[T](rpcstatus.FAIL, err.Error())
		}
		r := rpcclient.Call(client, method, zero, timeout, args...)
		if r.Code == rpcstatus.Closed {
			p.evict(service, addr)
			continue
		}
		return r
	}
	return rpcstatus.Err[T](rpcstatus.FAIL, "no live provider after eviction retry")
}

// Providers returns a snapshot of the pool's cached address list for
// service, mostly for tests and diagnostics.
func (p *Pool) Providers(service string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.addrCache[service]...)
}
