package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertbot/internal/alerts"
	"alertbot/internal/app"
	"alertbot/internal/storage"
	logx "alertbot/pkg/logx"
)

const testConfig = `
platform:
  driver: console
storage:
  driver: file
  path: %s
`

type harness struct {
	cfgPath   string
	storePath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		cfgPath:   filepath.Join(dir, "config.yaml"),
		storePath: filepath.Join(dir, "store"),
	}
	body := []byte(fmt.Sprintf(testConfig, h.storePath))
	require.NoError(t, os.WriteFile(h.cfgPath, body, 0o600))
	return h
}

// seed writes notifications straight into the store.
func (h *harness) seed(t *testing.T, ns ...alerts.Notification) {
	t.Helper()
	ctx := context.Background()
	store, err := storage.Open(storage.Config{Driver: "file", Path: h.storePath}, logx.Nop())
	require.NoError(t, err)
	defer store.Close()
	for _, n := range ns {
		data, err := json.Marshal(n)
		require.NoError(t, err)
		require.NoError(t, store.PutNotification(ctx, &storage.Record{
			ID:        n.ID,
			CreatedAt: n.CreatedAt,
			FireAt:    n.FireAt,
			State:     string(n.State),
			Read:      n.Read,
			Data:      data,
		}))
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	flags := &Flags{Stderr: &errOut}
	root := New(flags, "test")
	root.Writer = &out
	root.ErrWriter = &errOut
	argv := append([]string{"alertbot", "--config", h.cfgPath, "--env-file", ""}, args...)
	err := root.Run(context.Background(), argv)
	return out.String(), err
}

func delivered(id string, cat alerts.Category, title string, age time.Duration) alerts.Notification {
	at := time.Now().Add(-age)
	return alerts.Notification{
		ID:          id,
		Category:    cat,
		Title:       title,
		Body:        title,
		State:       alerts.StateDelivered,
		CreatedAt:   at,
		FireAt:      at,
		DeliveredAt: at,
		Deliveries:  1,
	}
}

func TestListAndUnread(t *testing.T) {
	h := newHarness(t)
	h.seed(t,
		delivered("w1", alerts.CategoryWeather, "Heavy rain", 2*time.Hour),
		delivered("s1", alerts.CategorySeismic, "Tremor", time.Hour),
	)

	out, err := h.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Heavy rain")
	assert.Contains(t, out, "Tremor")
	assert.Contains(t, out, "ago")

	out, err = h.run(t, "list", "--category", "quake")
	require.NoError(t, err)
	assert.Contains(t, out, "Tremor")
	assert.NotContains(t, out, "Heavy rain")

	out, err = h.run(t, "list", "--json", "--limit", "1")
	require.NoError(t, err)
	var n alerts.Notification
	require.NoError(t, json.Unmarshal(bytes.TrimSpace([]byte(out)), &n))
	assert.Equal(t, "s1", n.ID, "most recent first")

	out, err = h.run(t, "unread")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	_, err = h.run(t, "list", "--category", "volcano")
	require.Error(t, err)
}

func TestReadCancelClear(t *testing.T) {
	h := newHarness(t)
	h.seed(t,
		delivered("a", alerts.CategoryFlood, "River rising", 3*time.Hour),
		delivered("b", alerts.CategoryNDMA, "Advisory", 2*time.Hour),
		delivered("c", alerts.CategoryLocal, "Check pump", time.Hour),
	)

	_, err := h.run(t, "read")
	require.Error(t, err)

	out, err := h.run(t, "read", "a")
	require.NoError(t, err)
	assert.Contains(t, out, "read a")

	out, err = h.run(t, "unread")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = h.run(t, "list", "--unread")
	require.NoError(t, err)
	assert.NotContains(t, out, "River rising")

	_, err = h.run(t, "cancel", "b")
	require.NoError(t, err)
	_, err = h.run(t, "cancel", "missing")
	require.Error(t, err)
	assert.Equal(t, alerts.KindNotFound, alerts.KindOf(err))

	out, err = h.run(t, "read", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "marked 1 read")

	_, err = h.run(t, "clear")
	require.Error(t, err, "clear needs --yes")
	_, err = h.run(t, "clear", "--yes")
	require.NoError(t, err)

	out, err = h.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No notifications")

	out, err = h.run(t, "audit", "--limit", "50")
	require.NoError(t, err)
	assert.Contains(t, out, "cli")
	assert.Contains(t, out, "cancel")
	assert.Contains(t, out, "clear")
	assert.Contains(t, out, "missing")
}

func TestConfigCheck(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("platform:\n  driver: telegram\n"), 0o600))
	var buf bytes.Buffer
	root := New(&Flags{Stderr: &buf}, "test")
	root.Writer = &buf
	err = root.Run(context.Background(), []string{"alertbot", "--config", bad, "--env-file", "", "config", "check"})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "telegram.token")
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestManagementCommandsRejectMemoryStore(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("platform:\n  driver: console\n"), 0o600))

	root := New(&Flags{Stderr: &bytes.Buffer{}}, "test")
	root.Writer = &bytes.Buffer{}
	err := root.Run(context.Background(), []string{"alertbot", "--config", cfgPath, "--env-file", "", "clear", "--yes"})
	require.ErrorIs(t, err, app.ErrEphemeralStore)
}
