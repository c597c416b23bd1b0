package metrics

import (
	"streamline-hq/streamline/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the main orchestrator for all Prometheus metrics in
// Streamline. It manages metric registration and provides a unified
// interface for recording metrics across all pipeline components.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Fetch metrics
	fetchMetrics *FetchMetrics

	// Pipeline metrics
	pipelineMetrics *PipelineMetrics

	// Cache metrics
	cacheMetrics *CacheMetrics

	// Tester metrics
	testerMetrics *TesterMetrics

	// Security metrics (host sanitizer rejections)
	securityMetrics *SecurityMetrics
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a fresh
// registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "streamline",
//		Subsystem: "pipeline",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "streamline"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "pipeline"
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	c.fetchMetrics = NewFetchMetrics(cfg, registry)
	c.pipelineMetrics = NewPipelineMetrics(cfg, registry)
	c.cacheMetrics = NewCacheMetrics(cfg, registry)
	c.testerMetrics = NewTesterMetrics(cfg, registry)
	c.securityMetrics = NewSecurityMetrics(cfg, registry)

	return c
}

// Registry returns the underlying Prometheus registry for handler exposure.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Fetch returns the fetch metrics group.
func (c *Collector) Fetch() *FetchMetrics {
	return c.fetchMetrics
}

// Pipeline returns the pipeline metrics group.
func (c *Collector) Pipeline() *PipelineMetrics {
	return c.pipelineMetrics
}

// Cache returns the cache metrics group.
func (c *Collector) Cache() *CacheMetrics {
	return c.cacheMetrics
}

// Tester returns the tester metrics group.
func (c *Collector) Tester() *TesterMetrics {
	return c.testerMetrics
}

// Security returns the security metrics group.
func (c *Collector) Security() *SecurityMetrics {
	return c.securityMetrics
}
