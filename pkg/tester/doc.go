// Package tester probes parsed configs for endpoint reachability with
// per-protocol bounded concurrency.
package tester
