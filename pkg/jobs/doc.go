// Package jobs tracks pipeline runs as durable job records and
// optionally triggers them on a cron schedule. The registry is an
// explicit value owned by the caller; job state persists in SQLite so
// run history survives restarts.
package jobs
