// Package scheduler triggers jobs on cron expressions, fixed intervals and
// one-shot times. Jobs run directly on the trigger goroutine with an
// optional timeout; overlapping recurring runs are skipped.
package scheduler
