// Package cache provides the tiered response cache: an in-process LRU
// (L1) bounded by entry count and estimated bytes, fronting an optional
// redis tier (L2). L2 failures are never fatal.
package cache
