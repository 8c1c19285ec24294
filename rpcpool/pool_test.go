package rpcpool_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ws/registry"
	"github.com/momentics/hioload-ws/rpcpool"
	"github.com/momentics/hioload-ws/rpcserver"
	"github.com/momentics/hioload-ws/rpcstatus"
)

func add(a, b int32) (int32, error) { return a + b, nil }

func startRegistry(t *testing.T) string {
	t.Helper()
	reg := registry.New(registry.Config{Addrs: []string{"127.0.0.1:0"}})
	if err := reg.Start(); err != nil {
		t.Fatalf("registry Start: %v", err)
	}
	t.Cleanup(func() { reg.Shutdown() })
	return reg.Addrs()[0]
}

func startProvider(t *testing.T, registryAddr string) *rpcserver.Server {
	t.Helper()
	srv := rpcserver.New(rpcserver.Config{Addrs: []string{"127.0.0.1:0"}, RegistryAddr: registryAddr})
	rpcserver.Handler2[int32, int32, int32](srv, "Add", int32(0), int32(0), add)
	if err := srv.Start(); err != nil {
		t.Fatalf("provider Start: %v", err)
	}
	return srv
}

// TestPoolCallRoutesThroughDiscoveredProvider exercises the discover-then-
// call path end to end: registry, one provider, one pool.
func TestPoolCallRoutesThroughDiscoveredProvider(t *testing.T) {
	regAddr := startRegistry(t)
	srv := startProvider(t, regAddr)
	defer srv.Shutdown()

	p := rpcpool.New(rpcpool.Config{RegistryAddr: regAddr})
	defer p.Close()

	r := rpcpool.Call[int32](p, "Add", "Add", int32(0), time.Second, int32(3), int32(4))
	require.True(t, r.IsSuccess(), "Add(3,4) via pool = %+v", r)
	require.Equal(t, int32(7), r.Value)
}

func TestPoolDiscoverNoProvidersReturnsNoMethod(t *testing.T) {
	regAddr := startRegistry(t)

	p := rpcpool.New(rpcpool.Config{RegistryAddr: regAddr})
	defer p.Close()

	r := rpcpool.Call[int32](p, "Missing", "Missing", int32(0), time.Second)
	require.Equal(t, rpcstatus.NoMethod, r.Code)
}

// TestPoolEvictsOnDownDelta: with two providers registered for the same
// service, killing one must be reflected in the pool's cached address
// list via the subscription-driven delta, without waiting for any
// polling cycle.
func TestPoolEvictsOnDownDelta(t *testing.T) {
	regAddr := startRegistry(t)
	srvA := startProvider(t, regAddr)
	defer srvA.Shutdown()
	srvB := startProvider(t, regAddr)

	p := rpcpool.New(rpcpool.Config{RegistryAddr: regAddr})
	defer p.Close()

	// Trigger discovery (and therefore the delta subscription) before
	// killing a provider.
	r := rpcpool.Call[int32](p, "Add", "Add", int32(0), time.Second, int32(1), int32(1))
	require.True(t, r.IsSuccess(), "warm-up call failed: %+v", r)
	require.Len(t, p.Providers("Add"), 2)

	srvB.Shutdown()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(p.Providers("Add")) == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("got %d cached providers after kill, want 1", len(p.Providers("Add")))
}
