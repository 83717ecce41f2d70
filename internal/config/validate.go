package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
)

var (
	validStorageDrivers  = []string{"memory", "file", "sqlite", "postgres"}
	validPlatformDrivers = []string{"telegram", "console"}
	validCategories      = []string{"local", "weather", "seismic", "flood", "ndma"}
	validSounds          = []string{"default", "alarm", "siren", "none"}
	validLevels          = []string{"trace", "debug", "info", "warn", "error"}
)

// Validate checks the structural validity of a parsed config.
// It returns criterio.FieldErrors listing every bad field.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		c.validateTelegram(),
		criterio.Run("logging.level", c.Logging.Level, oneOfOrEmpty(validLevels)),
		c.validateStorage(),
		c.validateScheduler(),
		c.validateNotifier(),
		c.validateAlerts(),
		c.validateLocation(),
		criterio.Run("platform.driver", c.Platform.Driver, oneOfOrEmpty(validPlatformDrivers)),
		criterio.Run("http.addr", c.HTTP.Addr, validAddr),
	)
}

func (c *Config) validateTelegram() error {
	var errs criterio.FieldErrorsBuilder
	if c.Platform.Driver == "" || c.Platform.Driver == "telegram" {
		if strings.TrimSpace(c.Telegram.Token) == "" {
			errs = errs.Append("telegram.token", errors.New("required when platform.driver is telegram"))
		}
		if strings.TrimSpace(c.Telegram.AlertChat) == "" {
			errs = errs.Append("telegram.alert_chat", errors.New("required when platform.driver is telegram"))
		}
	}
	for i, id := range c.Telegram.OwnerUserIDs {
		if id <= 0 {
			errs = errs.Append(fmt.Sprintf("telegram.owner_user_ids[%d]", i), fmt.Errorf("must be > 0, got %d", id))
		}
	}
	if err := durationValid(c.Telegram.PollTimeout); err != nil {
		errs = errs.Append("telegram.poll_timeout", err)
	}
	return errs.ToError()
}

func (c *Config) validateStorage() error {
	var errs criterio.FieldErrorsBuilder
	if err := oneOfOrEmpty(validStorageDrivers)(c.Storage.Driver); err != nil {
		errs = errs.Append("storage.driver", err)
	}
	switch c.Storage.Driver {
	case "file", "sqlite":
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = errs.Append("storage.path", fmt.Errorf("required for driver %s", c.Storage.Driver))
		}
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = errs.Append("storage.dsn", errors.New("required for driver postgres"))
		}
	}
	if err := durationValid(c.Storage.BusyTimeout); err != nil {
		errs = errs.Append("storage.busy_timeout", err)
	}
	return errs.ToError()
}

func (c *Config) validateScheduler() error {
	var errs criterio.FieldErrorsBuilder
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = errs.Append("scheduler.timezone", fmt.Errorf("unknown timezone %q", tz))
		}
	}
	if err := durationValid(c.Scheduler.DefaultTimeout); err != nil {
		errs = errs.Append("scheduler.default_timeout", err)
	}
	return errs.ToError()
}

func (c *Config) validateNotifier() error {
	var errs criterio.FieldErrorsBuilder
	n := c.Notifier
	nonNeg := map[string]int{
		"notifier.workers":           n.Workers,
		"notifier.queue_size":        n.QueueSize,
		"notifier.rate_per_sec":      n.RatePerSec,
		"notifier.retry_max":         n.RetryMax,
		"notifier.dedup_max_entries": n.DedupMaxEntries,
	}
	for _, field := range []string{"notifier.workers", "notifier.queue_size", "notifier.rate_per_sec", "notifier.retry_max", "notifier.dedup_max_entries"} {
		if nonNeg[field] < 0 {
			errs = errs.Append(field, fmt.Errorf("must be >= 0, got %d", nonNeg[field]))
		}
	}
	for field, raw := range map[string]string{
		"notifier.retry_base":      n.RetryBase,
		"notifier.retry_max_delay": n.RetryMaxDelay,
		"notifier.dedup_window":    n.DedupWindow,
	} {
		if err := durationValid(raw); err != nil {
			errs = errs.Append(field, err)
		}
	}
	return errs.ToError()
}

func (c *Config) validateAlerts() error {
	var errs criterio.FieldErrorsBuilder
	if err := durationValid(c.Alerts.Scheduling.PastGrace); err != nil {
		errs = errs.Append("alerts.scheduling.past_grace", err)
	}
	if err := durationValid(c.Alerts.Scheduling.RetryBase); err != nil {
		errs = errs.Append("alerts.scheduling.retry_base", err)
	}
	if err := durationValid(c.Alerts.Scheduling.RetryMax); err != nil {
		errs = errs.Append("alerts.scheduling.retry_max", err)
	}
	if err := oneOfOrEmpty([]string{"error", "ignore"})(c.Alerts.CancelMissing); err != nil {
		errs = errs.Append("alerts.cancel_missing", err)
	}
	for name, p := range c.Alerts.Categories {
		field := fmt.Sprintf("alerts.categories[%q]", name)
		if err := oneOfOrEmpty(validCategories)(name); err != nil || name == "" {
			errs = errs.Append(field, fmt.Errorf("unknown category %q", name))
			continue
		}
		if p.Priority != nil && (*p.Priority < 0 || *p.Priority > 10) {
			errs = errs.Append(field+".priority", fmt.Errorf("must be within 0..10, got %d", *p.Priority))
		}
		if err := oneOfOrEmpty(validSounds)(p.Sound); err != nil {
			errs = errs.Append(field+".sound", err)
		}
		if p.ThreadID < 0 {
			errs = errs.Append(field+".thread_id", fmt.Errorf("must be >= 0, got %d", p.ThreadID))
		}
	}
	return errs.ToError()
}

func (c *Config) validateLocation() error {
	if !c.Location.Enabled {
		return nil
	}
	var errs criterio.FieldErrorsBuilder
	if err := within(-90, 90)(c.Location.Lat); err != nil {
		errs = errs.Append("location.lat", err)
	}
	if err := within(-180, 180)(c.Location.Lon); err != nil {
		errs = errs.Append("location.lon", err)
	}
	return errs.ToError()
}

func oneOfOrEmpty(allowed []string) func(string) error {
	return func(v string) error {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil
		}
		for _, a := range allowed {
			if strings.EqualFold(v, a) {
				return nil
			}
		}
		return fmt.Errorf("%q is not one of %s", v, strings.Join(allowed, ", "))
	}
}

func within(min, max float64) func(float64) error {
	return func(v float64) error {
		if v < min || v > max {
			return fmt.Errorf("must be within %g..%g, got %g", min, max, v)
		}
		return nil
	}
}

func validAddr(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	if !strings.Contains(addr, ":") {
		return fmt.Errorf("%q is missing a port", addr)
	}
	return nil
}

func durationValid(raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", raw)
	}
	if d < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
