package registry_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ws/registry"
	"github.com/momentics/hioload-ws/rpcclient"
	"github.com/momentics/hioload-ws/rpcstatus"
	"github.com/momentics/hioload-ws/wire"
)

func startRegistry(t *testing.T) (*registry.Registry, string) {
	t.Helper()
	reg := registry.New(registry.Config{Addrs: []string{"127.0.0.1:0"}})
	require.NoError(t, reg.Start())
	t.Cleanup(func() { reg.Shutdown() })
	return reg, reg.Addrs()[0]
}

func announceProvider(t *testing.T, addr string, port uint32, services ...string) *rpcclient.Client {
	t.Helper()
	c, err := rpcclient.Dial(addr, rpcclient.Config{HeartbeatInterval: -1})
	require.NoError(t, err)
	require.NoError(t, c.SendRaw(wire.Frame{Type: wire.RPCProvider, Payload: wire.EncodeProviderPayload(port)}))
	for _, svc := range services {
		f := wire.Frame{Type: wire.RPCServiceRegister, Payload: wire.EncodeServiceRegisterPayload(svc)}
		resp, err := c.SendAndAwait(f, time.Second)
		require.NoError(t, err, "register %s", svc)
		r, err := wire.DecodeServiceRegisterResponsePayload(resp.Payload)
		require.NoError(t, err, "decode register response for %s", svc)
		require.True(t, r.IsSuccess(), "register %s not acked: %+v", svc, r)
	}
	return c
}

func discover(t *testing.T, c *rpcclient.Client, service string) []rpcstatus.Result[string] {
	t.Helper()
	f := wire.Frame{Type: wire.RPCServiceDiscover, Payload: wire.EncodeServiceDiscoverPayload(service)}
	resp, err := c.SendAndAwait(f, time.Second)
	require.NoError(t, err, "discover %s", service)
	_, providers, err := wire.DecodeServiceDiscoverResponsePayload(resp.Payload)
	require.NoError(t, err, "decode discover response")
	return providers
}

// TestRegisterAndDiscover exercises the register/discover shape end
// to end: a provider registers "Add", a consumer discovers it and gets
// back a SUCCESS provider entry.
func TestRegisterAndDiscover(t *testing.T) {
	_, addr := startRegistry(t)

	provider := announceProvider(t, addr, 50051, "Add")
	defer provider.Close()

	consumer, err := rpcclient.Dial(addr, rpcclient.Config{HeartbeatInterval: -1})
	require.NoError(t, err)
	defer consumer.Close()

	providers := discover(t, consumer, "Add")
	require.Len(t, providers, 1)
	require.True(t, providers[0].IsSuccess(), "got %+v, want one SUCCESS provider", providers)
}

func TestDiscoverMissingServiceReturnsNoMethod(t *testing.T) {
	_, addr := startRegistry(t)

	consumer, err := rpcclient.Dial(addr, rpcclient.Config{HeartbeatInterval: -1})
	require.NoError(t, err)
	defer consumer.Close()

	providers := discover(t, consumer, "Missing")
	require.Len(t, providers, 1)
	require.Equal(t, rpcstatus.NoMethod, providers[0].Code)
}

// TestDisconnectPublishesDownDelta: after a provider disconnects, its
// subscribers observe a (false, address) delta.
func TestDisconnectPublishesDownDelta(t *testing.T) {
	_, addr := startRegistry(t)

	provider := announceProvider(t, addr, 50051, "Add")

	consumer, err := rpcclient.Dial(addr, rpcclient.Config{HeartbeatInterval: -1})
	require.NoError(t, err)
	defer consumer.Close()

	deltas := make(chan string, 4)
	err = consumer.Subscribe(registry.SubscribeKey("Add"), func(data []byte) {
		up, addr, decErr := wire.DecodeServiceDelta(data)
		if decErr != nil {
			return
		}
		if up {
			deltas <- "up:" + addr
		} else {
			deltas <- "down:" + addr
		}
	})
	require.NoError(t, err)

	provider.Close()

	select {
	case d := <-deltas:
		require.True(t, strings.HasPrefix(d, "down:"), "got delta %q, want a down delta", d)
	case <-time.After(2 * time.Second):
		t.Fatal("no down delta observed after provider disconnect")
	}
}
