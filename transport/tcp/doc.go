// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp implements the multi-address TCP accept loop that feeds
// accepted connections to the RPC fabric's worker pool, with optional
// per-listener CPU affinity pinning.
package tcp
