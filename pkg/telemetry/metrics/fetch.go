package metrics

import (
	"time"

	"streamline-hq/streamline/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// FetchMetrics tracks HTTP fetcher behavior: request outcomes, retries,
// circuit breaker state, and rate-limiter waits.
type FetchMetrics struct {
	requestsTotal *prometheus.CounterVec
	retriesTotal  prometheus.Counter
	breakerState  *prometheus.GaugeVec
	breakerOpens  *prometheus.CounterVec
	rateLimitWait prometheus.Histogram
	requestTime   prometheus.Histogram
	bodyBytes     prometheus.Histogram
}

// Breaker state gauge values.
const (
	BreakerClosed   = 0
	BreakerOpen     = 1
	BreakerHalfOpen = 2
)

// NewFetchMetrics creates and registers the fetch metric group.
func NewFetchMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *FetchMetrics {
	m := &FetchMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "fetch",
				Name:      "requests_total",
				Help:      "Total fetch requests by outcome.",
			},
			[]string{"outcome"}, // success, error, rate_limited, breaker_open
		),
		retriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "fetch",
				Name:      "retries_total",
				Help:      "Total retry attempts across all requests.",
			},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "fetch",
				Name:      "breaker_state",
				Help:      "Circuit breaker state per host (0=closed, 1=open, 2=half-open).",
			},
			[]string{"host"},
		),
		breakerOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "fetch",
				Name:      "breaker_opens_total",
				Help:      "Total circuit breaker open transitions per host.",
			},
			[]string{"host"},
		),
		rateLimitWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "fetch",
				Name:      "ratelimit_wait_seconds",
				Help:      "Time spent waiting on per-host token buckets.",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		),
		requestTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "fetch",
				Name:      "request_duration_seconds",
				Help:      "Fetch request durations.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
		bodyBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "fetch",
				Name:      "body_bytes",
				Help:      "Fetched body sizes in bytes.",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8), // 1 KiB .. 16 MiB
			},
		),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.retriesTotal,
		m.breakerState,
		m.breakerOpens,
		m.rateLimitWait,
		m.requestTime,
		m.bodyBytes,
	)

	return m
}

// RecordRequest records a completed fetch attempt.
func (m *FetchMetrics) RecordRequest(outcome string, duration time.Duration, bodySize int) {
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.requestTime.Observe(duration.Seconds())
	if bodySize > 0 {
		m.bodyBytes.Observe(float64(bodySize))
	}
}

// RecordRetry records a retry attempt.
func (m *FetchMetrics) RecordRetry() {
	m.retriesTotal.Inc()
}

// RecordBreakerState records a breaker state transition for a host.
func (m *FetchMetrics) RecordBreakerState(host string, state int) {
	m.breakerState.WithLabelValues(host).Set(float64(state))
	if state == BreakerOpen {
		m.breakerOpens.WithLabelValues(host).Inc()
	}
}

// RecordRateLimitWait records time spent waiting on a token bucket.
func (m *FetchMetrics) RecordRateLimitWait(wait time.Duration) {
	m.rateLimitWait.Observe(wait.Seconds())
}
