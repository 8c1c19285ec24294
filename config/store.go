// File: config/store.go
// Package config implements the thread-safe, YAML-backed configuration store
// consumed by the core as a "get value + register change-listener" external
// collaborator. It adapts control.ConfigStore's shape (map + reload
// listeners) with a YAML loader on top.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store is a dynamic key/value map with atomic snapshot, listener support,
// and YAML file loading.
type Store struct {
	mu        sync.RWMutex
	values    map[string]any
	listeners []func()
}

// New builds an empty Store seeded with the documented default
// configuration keys.
func New() *Store {
	return &Store{
		values: map[string]any{
			KeyFiberStackSize:              uint32(131072),
			KeyDaemonStartInterval:         uint32(5),
			KeyRPCClientChannelCapacity:    1024,
			KeyRPCConnectionPoolChanCap:    1024,
			KeyRPCServerHeartbeatTimeout:   uint64(40000),
			KeyRPCRegistryHeartbeatTimeout: uint64(40000),
		},
	}
}

// LoadYAML merges a YAML document (as raw bytes) over the current values
// and dispatches reload listeners.
func (s *Store) LoadYAML(data []byte) error {
	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return err
	}
	s.SetAll(parsed)
	return nil
}

// LoadYAMLFile reads and merges a YAML config file from disk.
func (s *Store) LoadYAMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.LoadYAML(data)
}

// Get returns the raw value for key and whether it was present.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// GetOr returns the value for key, or def if absent.
func (s *Store) GetOr(key string, def any) any {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Set assigns a single key and dispatches reload listeners.
func (s *Store) Set(key string, value any) {
	s.SetAll(map[string]any{key: value})
}

// SetAll merges new values and dispatches reload listeners.
func (s *Store) SetAll(newValues map[string]any) {
	s.mu.Lock()
	for k, v := range newValues {
		s.values[k] = v
	}
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		go fn()
	}
}

// OnChange registers a listener invoked (in its own goroutine) whenever the
// store's contents change.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns a copy of all values.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
