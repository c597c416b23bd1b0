// Package dedup provides the semantic deduplication set and the
// pre-dedup filter pipeline.
package dedup
