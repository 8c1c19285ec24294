package config_test

import (
	"testing"
	"time"

	"github.com/momentics/hioload-ws/config"
)

func TestDefaults(t *testing.T) {
	s := config.New()
	if got := s.FiberStackSize(); got != 131072 {
		t.Fatalf("expected default stack size 131072, got %d", got)
	}
	if got := s.RPCServerHeartbeatTimeout(); got != 40000 {
		t.Fatalf("expected default server heartbeat 40000, got %d", got)
	}
}

func TestLoadYAMLOverridesAndNotifies(t *testing.T) {
	s := config.New()
	notified := make(chan struct{}, 1)
	s.OnChange(func() { notified <- struct{}{} })

	yamlDoc := []byte("rpc.server.heartbeat_timeout: 5000\n")
	if err := s.LoadYAML(yamlDoc); err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatalf("expected reload listener to fire")
	}
	if got := s.RPCServerHeartbeatTimeout(); got != 5000 {
		t.Fatalf("expected overridden heartbeat 5000, got %d", got)
	}
}
