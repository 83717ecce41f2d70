package alerts

import (
	"time"

	"alertbot/internal/scheduler"
)

// resolveTrigger returns the first fire time of t relative to now.
func (s *Service) resolveTrigger(op string, t Trigger, now time.Time, cfg Config) (time.Time, error) {
	if !t.At.IsZero() && t.After != 0 {
		return time.Time{}, schedErr(op, "at and after are mutually exclusive")
	}
	if t.After < 0 {
		return time.Time{}, schedErr(op, "negative delay %s", t.After)
	}
	if t.Repeat != "" {
		if _, _, err := scheduler.Compile(t.Repeat); err != nil {
			return time.Time{}, schedErr(op, "repeat %q: %v", t.Repeat, err)
		}
	}

	switch {
	case t.After > 0:
		return now.Add(t.After), nil
	case t.At.IsZero():
		return now, nil
	case !t.At.Before(now):
		return t.At, nil
	case cfg.FirePast || now.Sub(t.At) <= cfg.PastGrace:
		return now, nil
	}
	return time.Time{}, schedErr(op, "trigger time %s is in the past", t.At.Format(time.RFC3339))
}
