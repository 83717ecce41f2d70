package app

import (
	"fmt"
	"strings"
	"time"

	"alertbot/internal/alerts"
	"alertbot/internal/config"
	"alertbot/internal/notifier"
	"alertbot/internal/scheduler"
	"alertbot/internal/storage"
	"alertbot/internal/transport/httpapi"
	logx "alertbot/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        strings.TrimSpace(sc.Path),
		DSN:         strings.TrimSpace(sc.DSN),
		BusyTimeout: busy,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	timeout, err := config.ParseDurationOrDefault("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout, time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return scheduler.Config{}, fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	return scheduler.Config{Timezone: cfg.Scheduler.Timezone, DefaultTimeout: timeout}, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	nc := cfg.Notifier
	base, err := config.ParseDurationOrDefault("notifier.retry_base", nc.RetryBase, 0)
	if err != nil {
		return notifier.Config{}, err
	}
	maxDelay, err := config.ParseDurationOrDefault("notifier.retry_max_delay", nc.RetryMaxDelay, 0)
	if err != nil {
		return notifier.Config{}, err
	}
	window, err := config.ParseDurationOrDefault("notifier.dedup_window", nc.DedupWindow, 0)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Workers:         nc.Workers,
		QueueSize:       nc.QueueSize,
		RatePerSec:      nc.RatePerSec,
		RetryMax:        nc.RetryMax,
		RetryBase:       base,
		RetryMaxDelay:   maxDelay,
		DedupWindow:     window,
		DedupMaxEntries: nc.DedupMaxEntries,
		PersistDedup:    nc.PersistDedup,
	}, nil
}

// mapAlertsConfig merges per-category overrides onto the built-in policies.
func mapAlertsConfig(cfg *config.Config) (alerts.Config, error) {
	ac := cfg.Alerts
	grace, err := config.ParseDurationOrDefault("alerts.scheduling.past_grace", ac.Scheduling.PastGrace, 0)
	if err != nil {
		return alerts.Config{}, err
	}
	retryBase, err := config.ParseDurationOrDefault("alerts.scheduling.retry_base", ac.Scheduling.RetryBase, 0)
	if err != nil {
		return alerts.Config{}, err
	}
	retryMax, err := config.ParseDurationOrDefault("alerts.scheduling.retry_max", ac.Scheduling.RetryMax, 0)
	if err != nil {
		return alerts.Config{}, err
	}
	pol := alerts.DefaultPolicies()
	for name, cp := range ac.Categories {
		cat, err := alerts.ParseCategory(name)
		if err != nil {
			return alerts.Config{}, fmt.Errorf("alerts.categories.%s: %w", name, err)
		}
		pol = pol.Merge(cat, cp.Priority, alerts.Sound(strings.ToLower(strings.TrimSpace(cp.Sound))), cp.ThreadID)
	}
	return alerts.Config{
		PastGrace:           grace,
		FirePast:            ac.Scheduling.FirePast,
		IgnoreMissingCancel: strings.EqualFold(ac.CancelMissing, "ignore"),
		RetryBase:           retryBase,
		RetryMax:            retryMax,
		Policies:            pol,
	}, nil
}

func mapHTTPConfig(cfg *config.Config) httpapi.Config {
	hc := cfg.HTTP
	return httpapi.Config{
		Enabled:       hc.Enabled,
		Addr:          hc.Addr,
		Token:         hc.Token,
		AllowInsecure: hc.AllowInsecure,
		Profiler:      hc.Profiler,
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   time.Minute,
	}
}

// validateLive rejects a reload that the live mappers cannot apply.
func validateLive(cfg *config.Config) error {
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapSchedulerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	_, err := mapAlertsConfig(cfg)
	return err
}
