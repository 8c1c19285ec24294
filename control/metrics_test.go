package control

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistryReportsGaugeValue(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.SchedulerActiveWorkers.Set(3)
	mr.RegistryProviders.Set(2)

	if got := testutil.ToFloat64(mr.SchedulerActiveWorkers); got != 3 {
		t.Fatalf("got %v, want 3", got)
	}
	if got := testutil.ToFloat64(mr.RegistryProviders); got != 2 {
		t.Fatalf("got %v, want 2", got)
	}
}

func TestMetricsRegistryCountsCallsByLabel(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.RPCCallsTotal.WithLabelValues("Add", "SUCCESS").Inc()
	mr.RPCCallsTotal.WithLabelValues("Add", "SUCCESS").Inc()
	mr.RPCCallsTotal.WithLabelValues("Add", "NO_MATCH").Inc()

	if got := testutil.ToFloat64(mr.RPCCallsTotal.WithLabelValues("Add", "SUCCESS")); got != 2 {
		t.Fatalf("got %v, want 2", got)
	}
	if got := testutil.ToFloat64(mr.RPCCallsTotal.WithLabelValues("Add", "NO_MATCH")); got != 1 {
		t.Fatalf("got %v, want 1", got)
	}
}
