package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertbot/internal/alerts"
	"alertbot/internal/config"
	"alertbot/internal/storage"
	logx "alertbot/pkg/logx"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

const consoleConfig = `
platform:
  driver: console
logging:
  level: error
storage:
  driver: file
  path: %DIR%/store
location:
  enabled: true
  lat: 19.07
  lon: 72.87
alerts:
  categories:
    flood:
      priority: 10
      sound: none
`

func consoleConfigIn(dir string) string {
	return strings.ReplaceAll(consoleConfig, "%DIR%", dir)
}

func TestMapAlertsConfig(t *testing.T) {
	ten := 10
	cfg := &config.Config{Alerts: config.AlertsConfig{
		CancelMissing: "ignore",
		Scheduling:    config.SchedulingConfig{PastGrace: "5s", FirePast: true, RetryBase: "10s", RetryMax: "10m"},
		Categories: map[string]config.CategoryPolicy{
			"flood": {Priority: &ten, Sound: "none", ThreadID: 7},
		},
	}}
	ac, err := mapAlertsConfig(cfg)
	require.NoError(t, err)
	assert.True(t, ac.IgnoreMissingCancel)
	assert.True(t, ac.FirePast)
	assert.Equal(t, 5*time.Second, ac.PastGrace)
	assert.Equal(t, 10*time.Second, ac.RetryBase)
	assert.Equal(t, 10*time.Minute, ac.RetryMax)

	flood := ac.Policies[alerts.CategoryFlood]
	assert.Equal(t, 10, flood.Priority)
	assert.Equal(t, alerts.SoundNone, flood.Sound)
	assert.Equal(t, 7, flood.ThreadID)
	assert.Equal(t, alerts.DefaultPolicies()[alerts.CategorySeismic], ac.Policies[alerts.CategorySeismic])
}

func TestMapConfigRejectsBadDurations(t *testing.T) {
	cfg := &config.Config{}
	cfg.Notifier.RetryBase = "fast"
	_, err := mapNotifierConfig(cfg)
	assert.ErrorContains(t, err, "notifier.retry_base")

	cfg = &config.Config{}
	cfg.Scheduler.Timezone = "Mars/Olympus"
	assert.Error(t, validateLive(cfg))

	cfg = &config.Config{}
	cfg.Alerts.Categories = map[string]config.CategoryPolicy{"volcano": {}}
	assert.Error(t, validateLive(cfg))
}

func TestConsoleAppDeliversAlert(t *testing.T) {
	dir := t.TempDir()
	out := &syncBuffer{}
	a, err := NewApp(writeConfig(t, consoleConfigIn(dir)), WithConsole(out))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	defer func() {
		stopCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = a.Stop(stopCtx, StopAppStop)
	}()

	require.Eventually(t, a.Alerts().Initialized, 3*time.Second, 10*time.Millisecond)

	id, err := a.Alerts().ScheduleFloodAlert(ctx, alerts.AlertRequest{
		Message:  "River above danger mark",
		Severity: "critical",
		Geofence: &alerts.Geofence{Lat: 19.1, Lon: 72.9, RadiusKM: 10},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "River above danger mark")
	}, 3*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "inside the alert zone")
	assert.NotContains(t, out.String(), "\a")

	n, err := a.Alerts().Notification(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, alerts.StateDelivered, n.State)
	assert.Equal(t, 10, n.Priority)

	status := a.statusText(ctx)
	assert.Contains(t, status, "platform: console (ready)")
	assert.Contains(t, status, "1 unread")
}

func TestOfflineSharesStore(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, consoleConfigIn(dir))

	a, err := NewApp(path, WithConsole(&syncBuffer{}))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	require.Eventually(t, a.Alerts().Initialized, 3*time.Second, 10*time.Millisecond)
	_, err = a.Alerts().ScheduleLocalNotification(ctx, alerts.LocalRequest{
		Title:   "Tea",
		Trigger: alerts.Trigger{After: time.Hour},
	})
	require.NoError(t, err)
	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(stopCtx, StopAppStop))

	off, err := OpenOffline(path, logx.Nop())
	require.NoError(t, err)
	defer off.Close()

	list, err := off.Alerts.Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Tea", list[0].Title)
	assert.Equal(t, alerts.StateScheduled, list[0].State)

	require.NoError(t, off.Alerts.CancelNotification(alerts.WithActor(ctx, "cli"), list[0].ID))
	c, err := off.Alerts.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, c)
}

func TestOfflineNeedsSharableStore(t *testing.T) {
	_, err := OpenOffline(writeConfig(t, "platform:\n  driver: console\n"), logx.Nop())
	require.ErrorIs(t, err, ErrEphemeralStore)

	dir := t.TempDir()
	path := writeConfig(t, consoleConfigIn(dir))
	a, err := NewApp(path, WithConsole(&syncBuffer{}))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, a.Start(ctx))

	// The running daemon owns the file store.
	_, err = OpenOffline(path, logx.Nop())
	require.ErrorIs(t, err, storage.ErrLocked)
	assert.Contains(t, err.Error(), "stop it first")

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(stopCtx, StopAppStop))

	off, err := OpenOffline(path, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, off.Close())
}
