// Package fetch downloads subscription bodies from untrusted HTTP
// sources.
//
// The Fetcher layers three protections in front of every request: a
// global concurrency semaphore, a per-host circuit breaker, and a
// per-host token bucket rate limiter. Response bodies are size-capped,
// and base64-encoded subscription blobs are decoded with a separate,
// tighter cap.
package fetch
