//go:build unix

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "alertbot/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreSingleOwner(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Driver: "file", Path: filepath.Join(t.TempDir(), "alerts.db")}

	daemon, err := Open(cfg, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, daemon.PutNotification(ctx, rec("n1", time.Now(), false)))

	// A second holder would keep its own copy of the state and miss writes.
	_, err = Open(cfg, logx.Nop())
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, daemon.Close())

	cli, err := Open(cfg, logx.Nop())
	require.NoError(t, err)
	defer cli.Close()
	_, err = cli.GetNotification(ctx, "n1")
	assert.NoError(t, err)
}
