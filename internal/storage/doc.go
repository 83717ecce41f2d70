// Package storage persists alert notifications, the operator audit log and
// notifier dedup state.
//
// Drivers:
//   - memory: process-local, the default
//   - file: JSON snapshot + JSONL journal on an afero.Fs
//   - sqlite: modernc.org/sqlite (pure Go), WAL mode
//   - postgres: jackc/pgx/v5 connection pool
package storage
