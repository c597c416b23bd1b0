package metrics

import (
	"sync"
	"time"

	"streamline-hq/streamline/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// SecurityMetrics tracks host sanitizer rejections, including a rolling
// count over the most recent window (60 seconds) exposed as a gauge.
type SecurityMetrics struct {
	rejectsTotal  prometheus.Counter
	rejectsRecent prometheus.GaugeFunc

	rolling *rollingCounter
}

// NewSecurityMetrics creates and registers the security metric group.
func NewSecurityMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SecurityMetrics {
	rolling := newRollingCounter(60 * time.Second)

	m := &SecurityMetrics{
		rejectsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "security",
				Name:      "host_rejects_total",
				Help:      "Total configs dropped by the host sanitizer.",
			},
		),
		rolling: rolling,
	}
	m.rejectsRecent = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "security",
			Name:      "host_rejects_recent",
			Help:      "Configs dropped by the host sanitizer in the last 60s.",
		},
		func() float64 { return float64(rolling.Count()) },
	)

	registry.MustRegister(m.rejectsTotal, m.rejectsRecent)
	return m
}

// RecordHostReject records a sanitizer rejection.
func (m *SecurityMetrics) RecordHostReject() {
	m.rejectsTotal.Inc()
	m.rolling.Add()
}

// RecentRejects returns the rejection count over the rolling window.
func (m *SecurityMetrics) RecentRejects() int {
	return m.rolling.Count()
}

// rollingCounter counts events within a sliding time window. Old events
// are dropped lazily on Add and Count.
type rollingCounter struct {
	mu     sync.Mutex
	window time.Duration
	events []time.Time
}

func newRollingCounter(window time.Duration) *rollingCounter {
	return &rollingCounter{window: window}
}

func (rc *rollingCounter) Add() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.pruneLocked(time.Now())
	rc.events = append(rc.events, time.Now())
}

func (rc *rollingCounter) Count() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.pruneLocked(time.Now())
	return len(rc.events)
}

// pruneLocked drops events older than the window. Caller must hold lock.
func (rc *rollingCounter) pruneLocked(now time.Time) {
	cutoff := now.Add(-rc.window)
	i := 0
	for i < len(rc.events) && rc.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		rc.events = rc.events[i:]
	}
}
