package metrics

import (
	"streamline-hq/streamline/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks tiered cache behavior per tier.
type CacheMetrics struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evictions *prometheus.CounterVec
	errors    *prometheus.CounterVec
}

// NewCacheMetrics creates and registers the cache metric group.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	m := &CacheMetrics{
		hits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Cache hits per tier.",
			},
			[]string{"tier"}, // l1, l2
		),
		misses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Cache misses per tier.",
			},
			[]string{"tier"},
		),
		evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Cache evictions per tier by reason.",
			},
			[]string{"tier", "reason"}, // lru, expired
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "errors_total",
				Help:      "Cache operation errors per tier.",
			},
			[]string{"tier"},
		),
	}

	registry.MustRegister(m.hits, m.misses, m.evictions, m.errors)
	return m
}

// RecordHit records a cache hit for a tier.
func (m *CacheMetrics) RecordHit(tier string) {
	m.hits.WithLabelValues(tier).Inc()
}

// RecordMiss records a cache miss for a tier.
func (m *CacheMetrics) RecordMiss(tier string) {
	m.misses.WithLabelValues(tier).Inc()
}

// RecordEviction records an eviction for a tier with its reason.
func (m *CacheMetrics) RecordEviction(tier, reason string) {
	m.evictions.WithLabelValues(tier, reason).Inc()
}

// RecordError records a cache operation error for a tier.
func (m *CacheMetrics) RecordError(tier string) {
	m.errors.WithLabelValues(tier).Inc()
}
