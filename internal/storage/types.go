package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/spf13/afero"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrClosed   = errors.New("storage: closed")
	// ErrLocked means another process holds the file store open.
	ErrLocked = errors.New("storage: in use by another process")
)

// Store is the persistence API used by the alerts service and the notifier.
//
// The notification methods treat Record.Data as opaque; the indexed fields
// (CreatedAt, Read, State, FireAt) must mirror it.
type Store interface {
	// PutNotification inserts or replaces a record. A new record gets the next
	// insertion sequence written back to rec.Seq; a replaced one keeps its own.
	PutNotification(ctx context.Context, rec *Record) error
	GetNotification(ctx context.Context, id string) (Record, error)
	DeleteNotification(ctx context.Context, id string) error
	// ListNotifications returns records most recent first: CreatedAt desc, then Seq desc.
	ListNotifications(ctx context.Context) ([]Record, error)
	DeleteAllNotifications(ctx context.Context) (int, error)
	CountUnread(ctx context.Context) (int, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	// ListAudit returns up to limit entries, newest first. limit <= 0 means 100.
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)

	Close() error
}

// Record is one persisted notification.
type Record struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	CreatedAt time.Time       `json:"created_at"`
	FireAt    time.Time       `json:"fire_at"`
	State     string          `json:"state"`
	Read      bool            `json:"read"`
	Data      json.RawMessage `json:"data"`
}

// Config configures storage.
//
// Driver values: "memory" (default), "file", "sqlite", "postgres".
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// Fs backs the file driver. Nil means the OS filesystem.
	Fs afero.Fs
}

// AuditEntry records an operator action.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`  // "telegram:<user id>", "http", "cli"
	Action string    `json:"action"` // "schedule", "cancel", "clear", "read"
	Target string    `json:"target,omitempty"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
	Meta   string    `json:"meta,omitempty"`
}

// sortRecords orders most recent first.
func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].Seq > recs[j].Seq
	})
}

func auditLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func cloneRecord(r Record) Record {
	if r.Data != nil {
		r.Data = append(json.RawMessage(nil), r.Data...)
	}
	return r
}
