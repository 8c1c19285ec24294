// File: config/keys.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package config

// Configuration keys, with their documented defaults and typed accessors.
const (
	KeyFiberStackSize              = "fiber.stack_size"
	KeyDaemonStartInterval         = "daemon.start_interval"
	KeyRPCClientChannelCapacity    = "rpc.client.channel_capacity"
	KeyRPCConnectionPoolChanCap    = "rpc.connection_pool.channel_capacity"
	KeyRPCServerHeartbeatTimeout   = "rpc.server.heartbeat_timeout"
	KeyRPCRegistryHeartbeatTimeout = "rpc.registry.heartbeat_timeout"
)

// FiberStackSize returns the configured default worker-fiber stack size, in
// bytes.
func (s *Store) FiberStackSize() uint32 {
	return toUint32(s.GetOr(KeyFiberStackSize, uint32(131072)))
}

// DaemonStartInterval returns the daemonizer restart back-off, in seconds.
func (s *Store) DaemonStartInterval() uint32 {
	return toUint32(s.GetOr(KeyDaemonStartInterval, uint32(5)))
}

// RPCClientChannelCapacity returns the RPC client's outbound frame-channel
// capacity.
func (s *Store) RPCClientChannelCapacity() int {
	return toInt(s.GetOr(KeyRPCClientChannelCapacity, 1024))
}

// RPCConnectionPoolChannelCapacity returns the connection pool's outbound
// channel capacity.
func (s *Store) RPCConnectionPoolChannelCapacity() int {
	return toInt(s.GetOr(KeyRPCConnectionPoolChanCap, 1024))
}

// RPCServerHeartbeatTimeout returns the server's per-connection idle
// timeout, in milliseconds.
func (s *Store) RPCServerHeartbeatTimeout() uint64 {
	return toUint64(s.GetOr(KeyRPCServerHeartbeatTimeout, uint64(40000)))
}

// RPCRegistryHeartbeatTimeout returns the registry's per-connection idle
// timeout, in milliseconds.
func (s *Store) RPCRegistryHeartbeatTimeout() uint64 {
	return toUint64(s.GetOr(KeyRPCRegistryHeartbeatTimeout, uint64(40000)))
}

func toUint32(v any) uint32 {
	switch t := v.(type) {
	case uint32:
		return t
	case int:
		return uint32(t)
	case int64:
		return uint32(t)
	case float64:
		return uint32(t)
	default:
		return 0
	}
}

func toUint64(v any) uint64 {
	switch t := v.(type) {
	case uint64:
		return t
	case uint32:
		return uint64(t)
	case int:
		return uint64(t)
	case int64:
		return uint64(t)
	case float64:
		return uint64(t)
	default:
		return 0
	}
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case uint32:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}
