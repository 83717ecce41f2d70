package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func validConfig() *Config {
	cfg := &Config{
		Telegram: TelegramConfig{Token: "t", AlertChat: "-100123", OwnerUserIDs: []int64{42}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestLoadYAML(t *testing.T) {
	p := writeFile(t, "config.yaml", `
telegram:
  token: abc
  alert_chat: "-100200"
  owner_user_ids: [1, 2]
storage:
  driver: sqlite
  path: ./alerts.db
alerts:
  scheduling:
    past_grace: 5s
  categories:
    seismic:
      priority: 9
      sound: siren
`)
	m := NewManager(p)
	m.SetEnvLookup(noEnv)
	cfg, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Telegram.Token)
	assert.Equal(t, []int64{1, 2}, cfg.Telegram.OwnerUserIDs)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "telegram", cfg.Platform.Driver)
	require.NotNil(t, cfg.Alerts.Categories["seismic"].Priority)
	assert.Equal(t, 9, *cfg.Alerts.Categories["seismic"].Priority)
	assert.Same(t, cfg, m.Get())
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	p := writeFile(t, "config.json", `{"telegram":{"token":"x","alert_chat":"1"},"bogus":true}`)
	m := NewManager(p)
	m.SetEnvLookup(noEnv)
	_, err := m.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestLoadRejectsTrailingData(t *testing.T) {
	_, err := Decode("c.json", []byte(`{"platform":{"driver":"console"}}{}`))
	require.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := validConfig()
	env := map[string]string{
		"ALERTBOT_TELEGRAM_TOKEN": "from-env",
		"ALERTBOT_OWNER_IDS":      "7, 8,bad",
		"ALERTBOT_STORAGE_DRIVER": "postgres",
	}
	ApplyEnv(cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, []int64{7, 8}, cfg.Telegram.OwnerUserIDs)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
}

func TestLoadDotEnvMissingFileIgnored(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		fields []string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:   "telegram platform needs token and chat",
			mutate: func(c *Config) { c.Telegram = TelegramConfig{} },
			fields: []string{"telegram.token", "telegram.alert_chat"},
		},
		{
			name: "console platform needs no token",
			mutate: func(c *Config) {
				c.Telegram = TelegramConfig{}
				c.Platform.Driver = "console"
			},
		},
		{
			name:   "sqlite needs path",
			mutate: func(c *Config) { c.Storage.Driver = "sqlite" },
			fields: []string{"storage.path"},
		},
		{
			name:   "unknown storage driver",
			mutate: func(c *Config) { c.Storage.Driver = "redis" },
			fields: []string{"storage.driver"},
		},
		{
			name:   "bad past grace",
			mutate: func(c *Config) { c.Alerts.Scheduling.PastGrace = "-1s" },
			fields: []string{"alerts.scheduling.past_grace"},
		},
		{
			name: "bad delivery retry",
			mutate: func(c *Config) {
				c.Alerts.Scheduling.RetryBase = "soon"
				c.Alerts.Scheduling.RetryMax = "-5m"
			},
			fields: []string{"alerts.scheduling.retry_base", "alerts.scheduling.retry_max"},
		},
		{
			name: "category priority out of range",
			mutate: func(c *Config) {
				p := 11
				c.Alerts.Categories = map[string]CategoryPolicy{"flood": {Priority: &p, Sound: "horn"}}
			},
			fields: []string{`alerts.categories["flood"].priority`, `alerts.categories["flood"].sound`},
		},
		{
			name:   "unknown timezone",
			mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" },
			fields: []string{"scheduler.timezone"},
		},
		{
			name: "location out of range",
			mutate: func(c *Config) {
				c.Location = LocationConfig{Enabled: true, Lat: 91, Lon: 0}
			},
			fields: []string{"location.lat"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if len(tc.fields) == 0 {
				require.NoError(t, err)
				return
			}
			var fieldErrs criterio.FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
			got := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				got = append(got, fe.Field)
			}
			assert.ElementsMatch(t, tc.fields, got)
		})
	}
}

func TestSummarizeChange(t *testing.T) {
	a := validConfig()
	b := validConfig()
	b.Telegram.Token = "rotated"
	b.Alerts.Scheduling.FirePast = true

	changed, attrs := SummarizeChange(a, b)
	assert.Equal(t, []string{"telegram", "alerts"}, changed)
	assert.NotEmpty(t, attrs)
	assert.Equal(t, []string{"telegram"}, RequiresRestart(changed))
}

func TestWatchPublishesValidReload(t *testing.T) {
	p := writeFile(t, "config.json", `{"platform":{"driver":"console"}}`)
	m := NewManager(p)
	m.SetEnvLookup(noEnv)
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(p, []byte(`{"platform":{"driver":"console"},"logging":{"level":"debug"}}`), 0o600))

	select {
	case cfg := <-ch:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("a.yml", []byte("{}")))
	assert.Equal(t, FormatJSON, DetectFormat("a.json", []byte("x: 1")))
	assert.Equal(t, FormatJSON, DetectFormat("alertbot.conf", []byte("  {\"telegram\":{}}")))
	assert.Equal(t, FormatYAML, DetectFormat("alertbot.conf", []byte("telegram:\n  token: x\n")))
}

func TestDecodeRejectsUnknownYAMLKeys(t *testing.T) {
	_, err := Decode("c.yaml", []byte("telegram:\n  tokn: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yaml")

	cfg, err := Decode("c.yaml", []byte(""))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}
