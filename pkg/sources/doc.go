// Package sources manages the persistent source universe: discovery of
// candidate subscription URLs, validation probes with reliability
// scoring, the per-source reputation state machine, and the durable
// two-file store (editable tiered YAML list plus engine-managed JSON
// performance state).
package sources
