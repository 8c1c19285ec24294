// File: cmd/fiberrpc-client/main.go
// Standalone RPC caller: discovers a service through a registry-aware
// pool and calls it, printing the result. One-shot, suitable for smoke
// testing a running registry + provider pair.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package main

import (
	"flag"
	"os"
	"time"

	"github.com/momentics/hioload-ws/logging"
	"github.com/momentics/hioload-ws/rpcpool"
)

func main() {
	registryAddr := flag.String("registry-addr", "127.0.0.1:7000", "registry address")
	service := flag.String("service", "Add", "service name to call")
	method := flag.String("method", "Add", "method name to call")
	a := flag.Int64("a", 3, "first int32 argument")
	b := flag.Int64("b", 4, "second int32 argument")
	timeout := flag.Duration("timeout", 5*time.Second, "call timeout")
	flag.Parse()

	log := logging.NewDevelopment()

	pool := rpcpool.New(rpcpool.Config{
		RegistryAddr: *registryAddr,
		Route:        rpcpool.RoutePolling,
		Log:          log,
	})
	defer pool.Close()

	result := rpcpool.Call[int32](pool, *service, *method, int32(0), *timeout, int32(*a), int32(*b))
	if !result.IsSuccess() {
		log.Error("call failed", logging.String("code", result.Code.String()), logging.String("message", result.Message))
		os.Exit(1)
	}
	log.Info("call succeeded", logging.Int("value", int(result.Value)))
}
