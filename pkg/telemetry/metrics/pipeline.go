package metrics

import (
	"time"

	"streamline-hq/streamline/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks run-level pipeline behavior: runs, stage
// durations, and config counts per stage.
type PipelineMetrics struct {
	runsTotal     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	configsTotal  *prometheus.CounterVec
	uniqueConfigs prometheus.Gauge
	reachable     prometheus.Gauge
}

// NewPipelineMetrics creates and registers the pipeline metric group.
func NewPipelineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PipelineMetrics {
	m := &PipelineMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "runs_total",
				Help:      "Total pipeline runs by final status.",
			},
			[]string{"status"}, // done, failed, cancelled
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage durations.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		configsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "configs_total",
				Help:      "Configs processed per stage.",
			},
			[]string{"stage"}, // parsed, deduped, tested, written
		),
		uniqueConfigs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "unique_configs",
				Help:      "Unique configs in the most recent run.",
			},
		),
		reachable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "reachable_configs",
				Help:      "Reachable configs in the most recent run.",
			},
		),
	}

	registry.MustRegister(
		m.runsTotal,
		m.stageDuration,
		m.configsTotal,
		m.uniqueConfigs,
		m.reachable,
	)

	return m
}

// RecordRun records a completed run with its final status.
func (m *PipelineMetrics) RecordRun(status string) {
	m.runsTotal.WithLabelValues(status).Inc()
}

// RecordStage records a stage duration.
func (m *PipelineMetrics) RecordStage(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordConfigs adds to the per-stage config counter.
func (m *PipelineMetrics) RecordConfigs(stage string, n int) {
	m.configsTotal.WithLabelValues(stage).Add(float64(n))
}

// SetRunTotals records the most recent run's unique and reachable counts.
func (m *PipelineMetrics) SetRunTotals(unique, reachable int) {
	m.uniqueConfigs.Set(float64(unique))
	m.reachable.Set(float64(reachable))
}
