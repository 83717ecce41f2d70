package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alertbot/internal/eventbus"
	"alertbot/internal/scheduler"
	"alertbot/internal/storage"
	"alertbot/pkg/logx"
)

// armLocked registers the trigger of n. Scheduled notifications get a
// one-shot timer at FireAt, which fires at once when FireAt has passed.
// Delivered repeating notifications get their recurring schedule back.
func (s *Service) armLocked(n Notification) (bool, error) {
	name := triggerPrefix + n.ID
	job := s.fireJob(n.ID)
	switch {
	case n.State == StateScheduled:
		if err := s.sched.AddOnce(name, n.FireAt, s.cfg.DeliveryTimeout, job); err != nil {
			return false, err
		}
		s.armed[name] = false
		return true, nil
	case n.State == StateDelivered && n.Repeat != "":
		if err := s.sched.AddSchedule(name, n.Repeat, s.cfg.DeliveryTimeout, job); err != nil {
			return false, err
		}
		s.armed[name] = true
		return true, nil
	}
	return false, nil
}

func (s *Service) disarmLocked(id string) {
	name := triggerPrefix + id
	if s.sched != nil {
		s.sched.Remove(name)
	}
	delete(s.armed, name)
}

func (s *Service) fireJob(id string) scheduler.Job {
	return func(ctx context.Context) error { return s.fire(ctx, id) }
}

// fire delivers id. A notification that no longer exists is skipped.
func (s *Service) fire(ctx context.Context, id string) error {
	name := triggerPrefix + id
	prox := s.proximity(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil
	}
	rec, err := s.store.GetNotification(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Debug("trigger for missing notification", logx.String("id", id))
		if s.armed[name] {
			s.sched.Remove(name)
		}
		delete(s.armed, name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", id, err)
	}
	n, err := fromRecord(rec)
	if err != nil {
		return err
	}

	out := n
	out.State = StateDelivered
	out.DeliveredAt = s.now()
	out.Deliveries++
	out.Read = false
	out.ReadAt = time.Time{}
	out.LastError = ""
	out.Attempts = 0
	if prox != nil {
		out.Proximity = prox
	}

	postErr := s.platform.Post(ctx, out)
	if postErr != nil {
		out = n
		out.LastError = postErr.Error()
		out.Attempts++
	}
	if rec, err := toRecord(out); err != nil {
		s.log.Warn("encode failed", logx.String("id", id), logx.Err(err))
	} else if err := s.store.PutNotification(ctx, rec); err != nil {
		s.log.Warn("persist delivery failed", logx.String("id", id), logx.Err(err))
	}

	if out.Repeat != "" && !s.armed[name] {
		if err := s.sched.AddSchedule(name, out.Repeat, s.cfg.DeliveryTimeout, s.fireJob(id)); err != nil {
			s.log.Warn("repeat register failed", logx.String("id", id), logx.Err(err))
		} else {
			s.armed[name] = true
		}
	} else if out.Repeat == "" {
		delete(s.armed, name)
	}
	if postErr != nil && out.State == StateScheduled && out.Repeat == "" {
		// The one-shot trigger is spent; arm a retry or nothing fires it again.
		retryAt := s.now().Add(s.retryDelay(out.Attempts))
		if err := s.sched.AddOnce(name, retryAt, s.cfg.DeliveryTimeout, s.fireJob(id)); err != nil {
			s.log.Warn("retry register failed", logx.String("id", id), logx.Err(err))
		} else {
			s.armed[name] = false
			s.log.Debug("delivery retry armed", logx.String("id", id), logx.Int("attempt", out.Attempts), logx.Time("at", retryAt))
		}
	}

	if postErr != nil {
		eventbus.Publish(s.bus, eventbus.AlertDeliveryFailed, EventData{ID: id, Category: n.Category, Error: postErr.Error()})
		return fmt.Errorf("deliver %s: %w", id, postErr)
	}
	s.log.Info("delivered",
		logx.String("id", id),
		logx.String("category", string(out.Category)),
		logx.Int("deliveries", out.Deliveries),
	)
	eventbus.Publish(s.bus, eventbus.AlertDelivered, EventData{ID: id, Category: out.Category, Severity: out.Severity})
	return nil
}

// retryDelay doubles RetryBase per failed attempt, capped at RetryMax.
func (s *Service) retryDelay(attempts int) time.Duration {
	d := s.cfg.RetryBase
	for i := 1; i < attempts && d < s.cfg.RetryMax; i++ {
		d *= 2
	}
	return min(d, s.cfg.RetryMax)
}

// proximity resolves the geofence context of id. Failures only log.
func (s *Service) proximity(ctx context.Context, id string) *Proximity {
	s.mu.Lock()
	located := s.located
	s.mu.Unlock()
	if !located || s.locator == nil {
		return nil
	}
	rec, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return nil
	}
	n, err := fromRecord(rec)
	if err != nil || n.Geofence == nil {
		return nil
	}
	pos, err := s.locator.CurrentPosition(ctx)
	if err != nil {
		s.log.Debug("position unavailable", logx.String("id", id), logx.Err(err))
		return nil
	}
	p := n.Geofence.Locate(pos)
	return &p
}

// DeliveryFailed records a failure the platform saw after Post returned,
// such as a send that exhausted its retries.
func (s *Service) DeliveryFailed(ctx context.Context, id string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return
	}
	n, err := fromRecord(rec)
	if err != nil {
		return
	}
	n.LastError = cause.Error()
	if out, err := toRecord(n); err == nil {
		if err := s.store.PutNotification(ctx, out); err != nil {
			s.log.Warn("persist failure failed", logx.String("id", id), logx.Err(err))
		}
	}
	s.log.Warn("delivery failed", logx.String("id", id), logx.Err(cause))
	eventbus.Publish(s.bus, eventbus.AlertDeliveryFailed, EventData{ID: id, Category: n.Category, Error: cause.Error()})
}
