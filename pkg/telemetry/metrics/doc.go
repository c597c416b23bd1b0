// Package metrics provides Prometheus metrics for the Streamline pipeline.
//
// The Collector owns a registry and per-concern metric groups: fetch
// (request outcomes, retries, breaker states, rate-limit waits), pipeline
// (runs, stage durations, config counts), cache (per-tier hits, misses,
// evictions, errors), tester (probes, latencies), and security (host
// sanitizer rejections with a 60-second rolling window).
package metrics
