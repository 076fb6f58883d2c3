package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for one CLI invocation, written out for the node exporter's
// textfile collector since the process is short-lived.
type Metrics struct {
	reg           *prometheus.Registry
	Verifications *prometheus.CounterVec
	SyncSeconds   prometheus.Histogram
	SeedFailures  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncprobe_verifications_total",
			Help: "Sync verifications by target and result",
		}, []string{"target", "result"}),
		SyncSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "syncprobe_sync_seconds",
			Help:    "Time until a seeded document became visible",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		}),
		SeedFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncprobe_seed_failures_total",
			Help: "Seed document inserts that failed",
		}),
	}
	m.reg.MustRegister(m.Verifications, m.SyncSeconds, m.SeedFailures)
	return m
}

// Observe records a verification result.
func (m *Metrics) Observe(target string, passed bool, seconds float64) {
	result := "fail"
	if passed {
		result = "pass"
		m.SyncSeconds.Observe(seconds)
	}
	m.Verifications.WithLabelValues(target, result).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// WriteTextfile writes the registry in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
