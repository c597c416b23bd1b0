// Package telemetry groups the observability subpackages: structured
// logging (logging), Prometheus metrics (metrics), and distributed
// tracing (tracing).
package telemetry
