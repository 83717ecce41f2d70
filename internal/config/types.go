package config

// Config is the root document. Durations are Go duration strings.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Notifier  NotifierConfig  `json:"notifier"`
	Alerts    AlertsConfig    `json:"alerts"`
	Location  LocationConfig  `json:"location"`
	Platform  PlatformConfig  `json:"platform"`
	HTTP      HTTPConfig      `json:"http"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// AlertChat is the chat that receives deliveries ("-100123" or "@channel").
	AlertChat string `json:"alert_chat"`
	GroupLog  string `json:"group_log,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the persistence driver.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./alertbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"` // memory|file|sqlite|postgres
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`          // postgres
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

type SchedulerConfig struct {
	Timezone       string `json:"timezone,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
}

// NotifierConfig controls the async delivery pipeline.
type NotifierConfig struct {
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base,omitempty"`
	RetryMaxDelay   string `json:"retry_max_delay,omitempty"`
	DedupWindow     string `json:"dedup_window,omitempty"`
	DedupMaxEntries int    `json:"dedup_max_entries,omitempty"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

type AlertsConfig struct {
	Scheduling SchedulingConfig `json:"scheduling"`
	// CancelMissing is "error" (default) or "ignore".
	CancelMissing string                    `json:"cancel_missing,omitempty"`
	Categories    map[string]CategoryPolicy `json:"categories,omitempty"`
}

type SchedulingConfig struct {
	PastGrace string `json:"past_grace,omitempty"`
	FirePast  bool   `json:"fire_past,omitempty"`
	// RetryBase and RetryMax bound the backoff of a failed first delivery.
	RetryBase string `json:"retry_base,omitempty"`
	RetryMax  string `json:"retry_max,omitempty"`
}

// CategoryPolicy overrides the built-in delivery defaults of one category.
// Zero fields keep the default.
type CategoryPolicy struct {
	Priority *int   `json:"priority,omitempty"`
	Sound    string `json:"sound,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
}

type LocationConfig struct {
	Enabled bool    `json:"enabled"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

type PlatformConfig struct {
	Driver string `json:"driver"` // telegram|console
}

// HTTPConfig controls the JSON API.
//
// Bind to loopback unless a token is set or allow_insecure is explicit.
type HTTPConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"` // default: "127.0.0.1:8085"
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Profiler      bool   `json:"profiler,omitempty"`
}
