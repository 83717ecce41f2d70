package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces environment overrides.
const EnvPrefix = "ALERTBOT_"

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are ignored; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv overlays ALERTBOT_* variables on cfg. Secrets normally live here
// instead of the config file.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if cfg == nil {
		return
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("TELEGRAM_TOKEN", &cfg.Telegram.Token)
	str("TELEGRAM_ALERT_CHAT", &cfg.Telegram.AlertChat)
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("STORAGE_PATH", &cfg.Storage.Path)
	str("STORAGE_DSN", &cfg.Storage.DSN)
	str("HTTP_ADDR", &cfg.HTTP.Addr)
	str("HTTP_TOKEN", &cfg.HTTP.Token)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("PLATFORM", &cfg.Platform.Driver)

	if v, ok := lookup(EnvPrefix + "OWNER_IDS"); ok && strings.TrimSpace(v) != "" {
		var ids []int64
		for _, part := range strings.Split(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err == nil && id != 0 {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			cfg.Telegram.OwnerUserIDs = ids
		}
	}
}
