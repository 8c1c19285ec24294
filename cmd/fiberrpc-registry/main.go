// File: cmd/fiberrpc-registry/main.go
// Standalone rendezvous server: providers register their address under a
// service name here, consumers discover and subscribe to up/down deltas.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/momentics/hioload-ws/control"
	"github.com/momentics/hioload-ws/logging"
	"github.com/momentics/hioload-ws/registry"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7000", "registry listen address")
	metricsAddr := flag.String("metrics-addr", "127.0.0.1:7001", "Prometheus /metrics listen address")
	flag.Parse()

	log := logging.NewDevelopment()
	metrics := control.NewMetricsRegistry()
	debug := control.NewDebugProbes()
	control.RegisterPlatformProbes(debug)

	reg := registry.New(registry.Config{
		Addrs:   []string{*addr},
		Log:     log,
		Metrics: metrics,
		Debug:   debug,
	})
	if err := reg.Start(); err != nil {
		log.Error("registry start failed", logging.Err(err))
		os.Exit(1)
	}
	defer reg.Shutdown()

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

	log.Info("registry listening", logging.String("addrs", strings.Join(reg.Addrs(), ",")))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("registry shutting down")
}
