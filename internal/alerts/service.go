package alerts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"alertbot/internal/eventbus"
	"alertbot/internal/storage"
	"alertbot/pkg/logx"

	"github.com/google/uuid"
)

const triggerPrefix = "alert:"

// Config tunes scheduling and delivery.
type Config struct {
	// PastGrace accepts an At trigger this far in the past as "now".
	PastGrace time.Duration
	// FirePast fires any past At trigger immediately instead of rejecting it.
	FirePast bool
	// IgnoreMissingCancel makes CancelNotification of an unknown ID a no-op.
	IgnoreMissingCancel bool
	// DeliveryTimeout bounds one fire, location lookup included.
	DeliveryTimeout time.Duration
	// RetryBase and RetryMax bound the backoff before a failed first
	// delivery is attempted again.
	RetryBase time.Duration
	RetryMax  time.Duration
	Policies  Policies
}

func (c Config) withDefaults() Config {
	if c.PastGrace <= 0 {
		c.PastGrace = 2 * time.Second
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 30 * time.Second
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 5 * time.Second
	}
	if c.RetryMax < c.RetryBase {
		c.RetryMax = max(5*time.Minute, c.RetryBase)
	}
	if c.Policies == nil {
		c.Policies = DefaultPolicies()
	}
	return c
}

// Options carries the collaborators of a Service. Store is required.
type Options struct {
	Store     storage.Store
	Platform  Platform
	Locator   Locator
	Scheduler Scheduler
	Bus       eventbus.Bus
	Log       logx.Logger

	Now   func() time.Time
	NewID func() string
}

type Service struct {
	log      logx.Logger
	store    storage.Store
	platform Platform
	locator  Locator
	sched    Scheduler
	bus      eventbus.Bus
	now      func() time.Time
	newID    func() string

	// mu serializes read-modify-write cycles on the store.
	mu          sync.Mutex
	cfg         Config
	initialized bool
	located     bool
	// armed maps trigger names to whether a recurring schedule is registered.
	armed map[string]bool
}

func New(cfg Config, opts Options) *Service {
	s := &Service{
		log:      opts.Log.With(logx.String("comp", "alerts")),
		store:    opts.Store,
		platform: opts.Platform,
		locator:  opts.Locator,
		sched:    opts.Scheduler,
		bus:      opts.Bus,
		now:      opts.Now,
		newID:    opts.NewID,
		cfg:      cfg.withDefaults(),
		armed:    map[string]bool{},
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Apply swaps the runtime config. Armed triggers keep their fire times.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Service) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Initialize requests platform permission, registers one channel per
// category, asks for location access and re-arms persisted notifications.
// It is a no-op when already initialized.
func (s *Service) Initialize(ctx context.Context) error {
	const op = "initialize"
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}
	if s.platform == nil {
		return newErr(KindPlatform, op, "", errors.New("no platform configured"))
	}
	if s.sched == nil {
		return newErr(KindPlatform, op, "", errors.New("no scheduler configured"))
	}

	if err := s.platform.RequestPermission(ctx); err != nil {
		kind := KindPlatform
		if errors.Is(err, ErrPermissionDenied) {
			kind = KindPermissionDenied
		}
		return newErr(kind, op, "", err)
	}
	if err := s.platform.RegisterChannels(ctx, s.cfg.Policies.Channels()); err != nil {
		return newErr(KindPlatform, op, "", err)
	}

	s.located = false
	if s.locator != nil {
		if err := s.locator.RequestPermission(ctx); err != nil {
			s.log.Warn("location unavailable; geofence context disabled", logx.Err(err))
		} else {
			s.located = true
		}
	}

	recs, err := s.store.ListNotifications(ctx)
	if err != nil {
		return newErr(KindPlatform, op, "", err)
	}
	armed := 0
	for _, rec := range recs {
		n, err := fromRecord(rec)
		if err != nil {
			s.log.Warn("skipping unreadable notification", logx.String("id", rec.ID), logx.Err(err))
			continue
		}
		ok, err := s.armLocked(n)
		if err != nil {
			s.log.Warn("re-arm failed", logx.String("id", n.ID), logx.Err(err))
			continue
		}
		if ok {
			armed++
		}
	}

	s.initialized = true
	s.log.Info("initialized",
		logx.Int("stored", len(recs)),
		logx.Int("armed", armed),
		logx.Bool("location", s.located),
	)
	return nil
}

// Cleanup disarms every trigger and releases the platform. It is safe to
// call repeatedly and on a service that never initialized.
func (s *Service) Cleanup(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched != nil {
		if n := s.sched.RemovePrefix(triggerPrefix); n > 0 {
			s.log.Debug("triggers removed", logx.Int("count", n))
		}
	}
	s.armed = map[string]bool{}
	if s.initialized && s.platform != nil {
		if err := s.platform.Close(); err != nil {
			s.log.Warn("platform close failed", logx.Err(err))
		}
	}
	s.initialized = false
	s.located = false
	s.log.Debug("cleaned up", logx.Bool("ctx_done", ctx.Err() != nil))
}

func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	n, err := s.store.CountUnread(ctx)
	if err != nil {
		return 0, newErr(KindPlatform, "unread count", "", err)
	}
	return n, nil
}

func (s *Service) ScheduleLocalNotification(ctx context.Context, req LocalRequest) (string, error) {
	const op = "schedule local"
	title := strings.TrimSpace(req.Title)
	body := strings.TrimSpace(req.Body)
	if title == "" && body == "" {
		return "", schedErr(op, "title or body required")
	}
	n := Notification{
		Category: CategoryLocal,
		Title:    title,
		Body:     body,
		Extra:    req.Extra,
	}
	return s.schedule(ctx, op, n, req.Trigger)
}

func (s *Service) ScheduleWeatherAlert(ctx context.Context, req AlertRequest) (string, error) {
	return s.Schedule(ctx, CategoryWeather, req)
}

func (s *Service) ScheduleNDMAAlert(ctx context.Context, req AlertRequest) (string, error) {
	return s.Schedule(ctx, CategoryNDMA, req)
}

func (s *Service) ScheduleSeismicAlert(ctx context.Context, req AlertRequest) (string, error) {
	return s.Schedule(ctx, CategorySeismic, req)
}

func (s *Service) ScheduleFloodAlert(ctx context.Context, req AlertRequest) (string, error) {
	return s.Schedule(ctx, CategoryFlood, req)
}

// Schedule dispatches on category. CategoryLocal maps Message to the body.
func (s *Service) Schedule(ctx context.Context, cat Category, req AlertRequest) (string, error) {
	if cat == CategoryLocal {
		return s.ScheduleLocalNotification(ctx, LocalRequest{
			Title:   req.Title,
			Body:    req.Message,
			Trigger: req.Trigger,
			Extra:   req.Extra,
		})
	}
	op := "schedule " + string(cat)
	if _, err := ParseCategory(string(cat)); err != nil {
		return "", schedErr(op, "%v", err)
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return "", schedErr(op, "message required")
	}
	sev, err := ParseSeverity(req.Severity)
	if err != nil {
		return "", schedErr(op, "%v", err)
	}
	if req.Geofence != nil && !req.Geofence.valid() {
		return "", schedErr(op, "invalid geofence %+v", *req.Geofence)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = channelName(cat)
	}
	n := Notification{
		Category: cat,
		Title:    title,
		Body:     msg,
		Severity: sev,
		Area:     strings.TrimSpace(req.Area),
		Source:   strings.TrimSpace(req.Source),
		Extra:    req.Extra,
		Geofence: req.Geofence,
	}
	return s.schedule(ctx, op, n, req.Trigger)
}

func (s *Service) schedule(ctx context.Context, op string, n Notification, t Trigger) (id string, err error) {
	defer func() { s.audit(ctx, "schedule", id, err, string(n.Category)) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return "", newErr(KindPlatform, op, "", ErrNotInitialized)
	}

	now := s.now()
	fireAt, err := s.resolveTrigger(op, t, now, s.cfg)
	if err != nil {
		return "", err
	}
	pol := s.cfg.Policies.Resolve(n.Category, n.Severity)

	n.ID = s.newID()
	n.Priority = pol.Priority
	n.Sound = pol.Sound
	n.State = StateScheduled
	n.CreatedAt = now
	n.FireAt = fireAt
	n.Repeat = strings.TrimSpace(t.Repeat)

	rec, err := toRecord(n)
	if err != nil {
		return "", newErr(KindPlatform, op, n.ID, err)
	}
	if err := s.store.PutNotification(ctx, rec); err != nil {
		return "", newErr(KindPlatform, op, n.ID, err)
	}
	if _, err := s.armLocked(n); err != nil {
		if derr := s.store.DeleteNotification(ctx, n.ID); derr != nil {
			s.log.Warn("rollback failed", logx.String("id", n.ID), logx.Err(derr))
		}
		return "", newErr(KindScheduling, op, n.ID, err)
	}

	s.log.Info("scheduled",
		logx.String("id", n.ID),
		logx.String("category", string(n.Category)),
		logx.String("severity", string(n.Severity)),
		logx.Time("fire_at", n.FireAt),
		logx.String("repeat", n.Repeat),
	)
	eventbus.Publish(s.bus, eventbus.AlertScheduled, EventData{ID: n.ID, Category: n.Category, Severity: n.Severity})
	return n.ID, nil
}

// CancelNotification deletes id and disarms its trigger.
func (s *Service) CancelNotification(ctx context.Context, id string) (err error) {
	const op = "cancel"
	defer func() { s.audit(ctx, op, id, err, "") }()

	s.mu.Lock()
	err = s.store.DeleteNotification(ctx, id)
	s.disarmLocked(id)
	ignore := s.cfg.IgnoreMissingCancel
	initialized := s.initialized
	s.mu.Unlock()

	switch {
	case errors.Is(err, storage.ErrNotFound):
		if ignore {
			return nil
		}
		return newErr(KindNotFound, op, id, err)
	case err != nil:
		return newErr(KindPlatform, op, id, err)
	}

	if initialized {
		s.withdraw(ctx, id)
	}
	s.log.Info("cancelled", logx.String("id", id))
	eventbus.Publish(s.bus, eventbus.AlertCancelled, EventData{ID: id})
	return nil
}

// ClearAllNotifications deletes every notification and disarms every trigger.
func (s *Service) ClearAllNotifications(ctx context.Context) (err error) {
	const op = "clear"
	var n int
	defer func() { s.audit(ctx, op, "", err, "") }()

	s.mu.Lock()
	recs, err := s.store.ListNotifications(ctx)
	if err != nil {
		s.mu.Unlock()
		return newErr(KindPlatform, op, "", err)
	}
	n, err = s.store.DeleteAllNotifications(ctx)
	if err != nil {
		s.mu.Unlock()
		return newErr(KindPlatform, op, "", err)
	}
	if s.sched != nil {
		s.sched.RemovePrefix(triggerPrefix)
	}
	s.armed = map[string]bool{}
	initialized := s.initialized
	s.mu.Unlock()

	if initialized {
		for _, rec := range recs {
			if rec.State == string(StateDelivered) {
				s.withdraw(ctx, rec.ID)
			}
		}
	}
	s.log.Info("cleared", logx.Int("count", n))
	eventbus.Publish(s.bus, eventbus.AlertsCleared, EventData{Count: n})
	return nil
}

// MarkAsRead is idempotent on an already-read notification.
func (s *Service) MarkAsRead(ctx context.Context, id string) (err error) {
	const op = "mark read"
	defer func() { s.audit(ctx, "read", id, err, "") }()

	s.mu.Lock()
	defer s.mu.Unlock()
	changed, err := s.markReadLocked(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return newErr(KindNotFound, op, id, err)
		}
		return newErr(KindPlatform, op, id, err)
	}
	if changed {
		eventbus.Publish(s.bus, eventbus.AlertRead, EventData{ID: id})
	}
	return nil
}

// MarkAllAsRead reports how many notifications changed.
func (s *Service) MarkAllAsRead(ctx context.Context) (count int, err error) {
	const op = "mark all read"
	defer func() { s.audit(ctx, "read", "*", err, "") }()

	s.mu.Lock()
	defer s.mu.Unlock()
	recs, err := s.store.ListNotifications(ctx)
	if err != nil {
		return 0, newErr(KindPlatform, op, "", err)
	}
	for _, rec := range recs {
		if rec.Read {
			continue
		}
		changed, err := s.markReadLocked(ctx, rec.ID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return count, newErr(KindPlatform, op, rec.ID, err)
		}
		if changed {
			count++
		}
	}
	if count > 0 {
		eventbus.Publish(s.bus, eventbus.AlertRead, EventData{Count: count})
	}
	return count, nil
}

func (s *Service) markReadLocked(ctx context.Context, id string) (bool, error) {
	rec, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return false, err
	}
	if rec.Read {
		return false, nil
	}
	n, err := fromRecord(rec)
	if err != nil {
		return false, err
	}
	n.Read = true
	n.ReadAt = s.now()
	out, err := toRecord(n)
	if err != nil {
		return false, err
	}
	return true, s.store.PutNotification(ctx, out)
}

// Notifications returns every notification, most recent first.
func (s *Service) Notifications(ctx context.Context) ([]Notification, error) {
	recs, err := s.store.ListNotifications(ctx)
	if err != nil {
		return nil, newErr(KindPlatform, "list", "", err)
	}
	out := make([]Notification, 0, len(recs))
	for _, rec := range recs {
		n, err := fromRecord(rec)
		if err != nil {
			s.log.Warn("skipping unreadable notification", logx.String("id", rec.ID), logx.Err(err))
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Service) Notification(ctx context.Context, id string) (Notification, error) {
	rec, err := s.store.GetNotification(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return Notification{}, newErr(KindNotFound, "get", id, err)
	}
	if err != nil {
		return Notification{}, newErr(KindPlatform, "get", id, err)
	}
	n, err := fromRecord(rec)
	if err != nil {
		return Notification{}, newErr(KindPlatform, "get", id, err)
	}
	return n, nil
}

func (s *Service) withdraw(ctx context.Context, id string) {
	if s.platform == nil {
		return
	}
	if err := s.platform.Withdraw(ctx, id); err != nil {
		s.log.Debug("withdraw failed", logx.String("id", id), logx.Err(err))
	}
}

func (s *Service) audit(ctx context.Context, action, target string, err error, meta string) {
	e := storage.AuditEntry{
		At:     s.now(),
		Actor:  ActorFrom(ctx),
		Action: action,
		Target: target,
		OK:     err == nil,
		Meta:   meta,
	}
	if err != nil {
		e.Error = err.Error()
	}
	if aerr := s.store.AppendAudit(context.WithoutCancel(ctx), e); aerr != nil {
		s.log.Debug("audit append failed", logx.String("action", action), logx.Err(aerr))
	}
}
