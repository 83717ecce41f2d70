package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "alertbot/pkg/logx"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id string, created time.Time, read bool) *Record {
	return &Record{
		ID:        id,
		CreatedAt: created,
		State:     "scheduled",
		Read:      read,
		Data:      json.RawMessage(`{"id":"` + id + `"}`),
	}
}

// exerciseStore runs the behavior every driver must share.
func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().Truncate(time.Millisecond)

	a := rec("a", base, false)
	b := rec("b", base, false) // same CreatedAt, later insert
	c := rec("c", base.Add(-time.Minute), true)
	for _, r := range []*Record{a, b, c} {
		require.NoError(t, st.PutNotification(ctx, r))
	}
	assert.Less(t, a.Seq, b.Seq)

	list, err := st.ListNotifications(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)

	n, err := st.CountUnread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Replacing keeps the original sequence.
	seq := a.Seq
	a.Read = true
	require.NoError(t, st.PutNotification(ctx, a))
	assert.Equal(t, seq, a.Seq)

	got, err := st.GetNotification(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.Read)
	assert.True(t, got.CreatedAt.Equal(base))
	assert.JSONEq(t, `{"id":"a"}`, string(got.Data))

	n, err = st.CountUnread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, st.DeleteNotification(ctx, "b"))
	assert.ErrorIs(t, st.DeleteNotification(ctx, "b"), ErrNotFound)
	_, err = st.GetNotification(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err := st.DeleteAllNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	list, err = st.ListNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	until := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	require.NoError(t, st.PutDedup(ctx, "n1:1", until))
	got2, ok, err := st.GetDedup(ctx, "n1:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got2.Equal(until))
	_, ok, err = st.GetDedup(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.AppendAudit(ctx, AuditEntry{Actor: "cli", Action: "clear", OK: true}))
	require.NoError(t, st.AppendAudit(ctx, AuditEntry{Actor: "http", Action: "cancel", Target: "n2", Error: "not found"}))
	audit, err := st.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	assert.Equal(t, "cancel", audit[0].Action)
	assert.Equal(t, "n2", audit[0].Target)
	assert.False(t, audit[0].OK)
	assert.Equal(t, "cli", audit[1].Actor)
	assert.True(t, audit[1].OK)
	assert.False(t, audit[1].At.IsZero())

	audit, err = st.ListAudit(ctx, 1)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "cancel", audit[0].Action)
}

func TestMemoryStore(t *testing.T) {
	st := NewMemory()
	exerciseStore(t, st)
	require.NoError(t, st.Close())
	_, err := st.ListNotifications(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFileStore(t *testing.T) {
	fs := afero.NewMemMapFs()
	st, err := Open(Config{Driver: "file", Path: "/data/alerts.db", Fs: fs}, logx.Nop())
	require.NoError(t, err)
	exerciseStore(t, st)
	require.NoError(t, st.Close())
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	cfg := Config{Driver: "file", Path: "/data/alerts.db", Fs: fs}

	st, err := Open(cfg, logx.Nop())
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, st.PutNotification(ctx, rec("x", now, false)))
	require.NoError(t, st.PutNotification(ctx, rec("y", now, false)))
	require.NoError(t, st.DeleteNotification(ctx, "x"))
	// Journal only, no Close: simulates a crash.
	fst := st.(*fileStore)
	fst.mu.Lock()
	_ = fst.journal.Close()
	_ = fst.audit.Close()
	fst.journal, fst.audit = nil, nil
	fst.mu.Unlock()

	st2, err := Open(cfg, logx.Nop())
	require.NoError(t, err)
	list, err := st2.ListNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "y", list[0].ID)

	// New records continue the sequence.
	z := rec("z", now, false)
	require.NoError(t, st2.PutNotification(ctx, z))
	assert.Greater(t, z.Seq, list[0].Seq)
	require.NoError(t, st2.Close())

	ok, err := afero.Exists(fs, "/data/alerts.snapshot.json")
	require.NoError(t, err)
	assert.True(t, ok)

	st3, err := Open(cfg, logx.Nop())
	require.NoError(t, err)
	defer st3.Close()
	n, err := st3.CountUnread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.db")
	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	exerciseStore(t, st)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("ALERTBOT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ALERTBOT_TEST_POSTGRES_DSN not set")
	}
	st, err := Open(Config{Driver: "postgres", DSN: dsn}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	_, _ = st.DeleteAllNotifications(context.Background())
	exerciseStore(t, st)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	require.Error(t, err)
}
