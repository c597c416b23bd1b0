// Package events provides the in-process event bus, the external event
// wire format, and the durable run log.
//
// Every pipeline stage publishes lifecycle events (start, progress, done,
// error) on the Bus. Subscribers include the metrics collector, the server's
// SSE endpoint, and the throttled dashboard aggregator. Delivery is
// best-effort, at-most-once, and ordered per publisher.
//
// The wire format for external subscribers is a JSON object with "type"
// (string), "data" (object), and "ts" (epoch seconds).
package events
