// File: cmd/fiberrpc-server/main.go
// Standalone RPC provider: registers a handful of example methods and
// joins a registry so fiberrpc-client and rpcpool-based callers can
// discover it by service name instead of a fixed address.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/momentics/hioload-ws/control"
	"github.com/momentics/hioload-ws/logging"
	"github.com/momentics/hioload-ws/rpcserver"
)

func add(a, b int32) (int32, error) { return a + b, nil }

func divide(a, b int32) (int32, error) {
	if b == 0 {
		return 0, fmt.Errorf("divide by zero")
	}
	return a / b, nil
}

func echo(s string) (string, error) { return s, nil }

func main() {
	addr := flag.String("addr", "127.0.0.1:0", "provider listen address")
	registryAddr := flag.String("registry-addr", "127.0.0.1:7000", "registry address to join")
	metricsAddr := flag.String("metrics-addr", "127.0.0.1:7002", "Prometheus /metrics listen address")
	flag.Parse()

	log := logging.NewDevelopment()
	metrics := control.NewMetricsRegistry()
	debug := control.NewDebugProbes()
	control.RegisterPlatformProbes(debug)

	srv := rpcserver.New(rpcserver.Config{
		Addrs:        []string{*addr},
		RegistryAddr: *registryAddr,
		Log:          log,
		Metrics:      metrics,
		Debug:        debug,
	})

	rpcserver.Handler2[int32, int32, int32](srv, "Add", int32(0), int32(0), add)
	rpcserver.Handler2[int32, int32, int32](srv, "Divide", int32(0), int32(0), divide)
	rpcserver.Handler1[string, string](srv, "Echo", "", echo)

	if err := srv.Start(); err != nil {
		log.Error("provider start failed", logging.Err(err))
		os.Exit(1)
	}
	defer srv.Shutdown()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Gatherer(), promhttp.HandlerOpts{}))
		mux.HandleFunc("/debug", func(w http.ResponseWriter, req *http.Request) {
			json.NewEncoder(w).Encode(debug.DumpState())
		})
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			log.Warn("metrics server stopped", logging.Err(err))
		}
	}()

	log.Info("provider listening",
		logging.String("addrs", strings.Join(srv.Addrs(), ",")),
		logging.String("services", strings.Join(srv.ServiceNames(), ",")))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("provider shutting down")
}
