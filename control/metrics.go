// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics registry for the scheduler, reactor, and RPC layers,
// exported via prometheus/client_golang so an operator can scrape
// worker/session/service counts alongside whatever else already lives on
// a process's registry.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRegistry wraps a dedicated prometheus.Registry with the gauges
// and counters this module reports, so it can be mounted under its own
// HTTP path without colliding with an embedding application's metrics.
type MetricsRegistry struct {
	reg *prometheus.Registry

	SchedulerActiveWorkers prometheus.Gauge
	SchedulerIdleWorkers   prometheus.Gauge
	SchedulerQueueDepth    prometheus.Gauge

	ReactorPendingTimers prometheus.Gauge
	ReactorPollWaitNanos prometheus.Histogram

	RPCSessionsOpen     prometheus.Gauge
	RPCCallsTotal       *prometheus.CounterVec
	RPCCallDuration     *prometheus.HistogramVec
	RegistryProviders   prometheus.Gauge
	RegistrySubscribers prometheus.Gauge
}

// NewMetricsRegistry builds and registers every gauge/counter/histogram
// on a fresh prometheus.Registry.
func NewMetricsRegistry() *MetricsRegistry {
	mr := &MetricsRegistry{
		reg: prometheus.NewRegistry(),
		SchedulerActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_scheduler_active_workers",
			Help: "Workers currently executing a fiber or closure task.",
		}),
		SchedulerIdleWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_scheduler_idle_workers",
			Help: "Workers currently parked waiting for a task.",
		}),
		SchedulerQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_scheduler_queue_depth",
			Help: "Tasks currently waiting in the scheduler's shared queue.",
		}),
		ReactorPendingTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_reactor_pending_timers",
			Help: "Timers currently armed in the reactor's timer wheel.",
		}),
		ReactorPollWaitNanos: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hioload_reactor_poll_wait_nanoseconds",
			Help:    "Observed poll-wait durations for the reactor's poll loop.",
			Buckets: prometheus.ExponentialBuckets(1000, 4, 12),
		}),
		RPCSessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_rpc_sessions_open",
			Help: "Open RPC sessions on this server.",
		}),
		RPCCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_rpc_calls_total",
			Help: "RPC calls dispatched, labeled by method and result code.",
		}, []string{"method", "code"}),
		RPCCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hioload_rpc_call_duration_seconds",
			Help:    "RPC call latency, labeled by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		RegistryProviders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_registry_providers",
			Help: "Providers currently registered with the registry.",
		}),
		RegistrySubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_registry_subscribers",
			Help: "Live subscriber sessions across every subscription topic.",
		}),
	}
	mr.reg.MustRegister(
		mr.SchedulerActiveWorkers, mr.SchedulerIdleWorkers, mr.SchedulerQueueDepth,
		mr.ReactorPendingTimers, mr.ReactorPollWaitNanos,
		mr.RPCSessionsOpen, mr.RPCCallsTotal, mr.RPCCallDuration,
		mr.RegistryProviders, mr.RegistrySubscribers,
	)
	return mr
}

// Gatherer exposes the underlying registry for an HTTP handler
// (promhttp.HandlerFor) to scrape.
func (mr *MetricsRegistry) Gatherer() prometheus.Gatherer { return mr.reg }
