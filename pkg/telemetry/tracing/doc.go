// Package tracing provides OpenTelemetry tracing for pipeline runs.
//
// Each run produces a root span with one child span per pipeline stage
// (discover, validate, fetch, dedup, test, score, write). Spans are
// exported over OTLP gRPC; when tracing is disabled a noop tracer keeps
// the call sites free of conditionals.
package tracing
