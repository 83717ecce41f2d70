// Package notifier is the async delivery pipeline between alert triggers
// and a chat transport.
//
// Items go through a bounded queue into a small worker pool. Each send waits
// on a token-bucket rate limiter and is retried with exponential backoff and
// jitter. A dedup window suppresses repeated deliveries of the same key;
// with PersistDedup the window is mirrored into storage so it survives a
// restart.
//
// Lifecycle events are published on the event bus as notifier.*.
package notifier
