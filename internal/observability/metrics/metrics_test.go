package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestScanMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewScanMetrics(reg)
	m.ObserveProvider("Deep Tissue", "recorded", 4)
	m.ObserveProvider("Deep Tissue", "empty", 0)
	m.ObserveProvider("Deep Tissue", "recorded", 2)

	if got := testutil.ToFloat64(m.slotsFound.WithLabelValues("Deep Tissue")); got != 6 {
		t.Fatalf("expected 6 slots, got %v", got)
	}
	if got := testutil.ToFloat64(m.providerTotal.WithLabelValues("Deep Tissue", "recorded")); got != 2 {
		t.Fatalf("expected 2 recorded outcomes, got %v", got)
	}
}

func TestScanMetricsLastSuccessOnlyOnCompleted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewScanMetrics(reg)
	finished := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)

	m.ObserveRun("aborted", time.Minute, finished)
	if got := testutil.ToFloat64(m.lastSuccessTime); got != 0 {
		t.Fatalf("aborted run moved the gauge: %v", got)
	}
	m.ObserveRun("completed", time.Minute, finished)
	if got := testutil.ToFloat64(m.lastSuccessTime); got != float64(finished.Unix()) {
		t.Fatalf("unexpected last success %v", got)
	}
	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 completed run, got %v", got)
	}
}

func TestScanMetricsNilSafe(t *testing.T) {
	var m *ScanMetrics
	m.ObserveProvider("Swedish", "failed", 0)
	m.ObserveRun("completed", time.Second, time.Now())
}
