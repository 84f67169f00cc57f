package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ScanMetrics exposes counters/gauges for availability scan runs.
type ScanMetrics struct {
	runsTotal       *prometheus.CounterVec
	providerTotal   *prometheus.CounterVec
	slotsFound      *prometheus.CounterVec
	runDuration     prometheus.Histogram
	lastSuccessTime prometheus.Gauge
}

func NewScanMetrics(reg prometheus.Registerer) *ScanMetrics {
	m := &ScanMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spa",
			Subsystem: "scanner",
			Name:      "runs_total",
			Help:      "Total scan runs by final status",
		}, []string{"status"}),
		providerTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spa",
			Subsystem: "scanner",
			Name:      "provider_outcomes_total",
			Help:      "Per-provider scan outcomes",
		}, []string{"category", "status"}),
		slotsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spa",
			Subsystem: "scanner",
			Name:      "slots_found_total",
			Help:      "Slots recorded per category",
		}, []string{"category"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spa",
			Subsystem: "scanner",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full scan run",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
		}),
		lastSuccessTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spa",
			Subsystem: "scanner",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last completed scan",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.providerTotal, m.slotsFound, m.runDuration, m.lastSuccessTime)
	return m
}

func (m *ScanMetrics) ObserveProvider(category, status string, slots int) {
	if m == nil {
		return
	}
	m.providerTotal.WithLabelValues(category, status).Inc()
	if slots > 0 {
		m.slotsFound.WithLabelValues(category).Add(float64(slots))
	}
}

// ObserveRun records a finished run. Only completed runs move the
// last-success gauge.
func (m *ScanMetrics) ObserveRun(status string, elapsed time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	if status == "completed" {
		m.lastSuccessTime.Set(float64(finishedAt.Unix()))
	}
}
