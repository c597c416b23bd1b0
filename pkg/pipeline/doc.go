// Package pipeline orchestrates one aggregation run end to end:
// discover candidate sources, validate and score them, fetch the
// survivors through the cache, parse and deduplicate their configs,
// optionally probe reachability, score, and write the artifacts. The
// orchestrator publishes an event at every stage transition and appends
// a summary record to the run log when the run ends, whatever its
// outcome.
package pipeline
