// Package server exposes the aggregator over HTTP: health, run control,
// job and run history, source records, artifact downloads, Prometheus
// metrics, and a server-sent-events stream of pipeline events.
//
// The server owns no pipeline state. It triggers runs through the
// orchestrator, tracks them as jobs in the registry, and fans bus events
// out to connected stream clients through a hub so that a slow client
// never stalls event dispatch.
//
// Requests pass through a middleware chain (innermost to outermost):
//  1. Logging: method, path, status, latency
//  2. RequestID: stamps and echoes X-Request-ID
//  3. Recovery: converts panics into 500 responses
//
// Shutdown drains in-flight requests within the configured timeout and
// closes all event-stream connections.
package server
