package metrics

import (
	"time"

	"streamline-hq/streamline/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// TesterMetrics tracks connection testing behavior per protocol.
type TesterMetrics struct {
	probesTotal   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
}

// NewTesterMetrics creates and registers the tester metric group.
func NewTesterMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *TesterMetrics {
	m := &TesterMetrics{
		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "tester",
				Name:      "probes_total",
				Help:      "Connection probes by protocol and result.",
			},
			[]string{"protocol", "result"}, // reachable, unreachable, error
		),
		probeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "tester",
				Name:      "probe_duration_seconds",
				Help:      "Connection probe durations by protocol.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"protocol"},
		),
	}

	registry.MustRegister(m.probesTotal, m.probeDuration)
	return m
}

// RecordProbe records a completed probe.
func (m *TesterMetrics) RecordProbe(protocol, result string, duration time.Duration) {
	m.probesTotal.WithLabelValues(protocol, result).Inc()
	m.probeDuration.WithLabelValues(protocol).Observe(duration.Seconds())
}
