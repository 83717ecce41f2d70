// Package app wires config, storage, the scheduler, the delivery platform and
// the outer surfaces into one running process.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"alertbot/internal/alerts"
	"alertbot/internal/config"
	"alertbot/internal/eventbus"
	"alertbot/internal/location"
	"alertbot/internal/notifier"
	"alertbot/internal/platform/console"
	tgplatform "alertbot/internal/platform/telegram"
	rtsup "alertbot/internal/runtime/supervisor"
	"alertbot/internal/scheduler"
	"alertbot/internal/storage"
	kit "alertbot/internal/transport"
	"alertbot/internal/transport/httpapi"
	telegram "alertbot/internal/transport/telegram/adapter"
	"alertbot/internal/transport/telegram/router"
	logx "alertbot/pkg/logx"
	"alertbot/pkg/systemd"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	// adapter is nil when no bot token is configured.
	adapter *telegram.Adapter
	notif   *notifier.Service
	sched   *scheduler.Service

	platform alerts.Platform
	tgPlat   *tgplatform.Platform
	locator  *location.Static
	alerts   *alerts.Service

	cmdm *router.CommandManager
	http *httpapi.Server

	updates   chan kit.Update
	startedAt time.Time
}

type options struct {
	console io.Writer
}

type Option func(*options)

// WithConsole redirects the console platform. Default os.Stdout.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

func NewApp(cfgPath string, opts ...Option) (*App, error) {
	o := options{console: os.Stdout}
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	var ad *telegram.Adapter
	if strings.TrimSpace(cfg.Telegram.Token) != "" {
		pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		bootLog := logx.NewConsole("info").With(logx.String("comp", "telegram"))
		ad, err = telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, bootLog)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
	}

	// Bootstrap with the Telegram sink off so Apply does not warn before the
	// target is set.
	var sender logx.Sender
	if ad != nil {
		sender = ad
	}
	logCfg := mapLoggingConfig(cfg)
	bootCfg := logCfg
	bootCfg.Telegram.Enabled = false
	logSvc, log := logx.New(bootCfg, sender)
	setLogTarget(logSvc, cfg)
	logSvc.Apply(logCfg)
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	log.Info("storage opened", logx.String("driver", sc.Driver))

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	sched := scheduler.New(schedCfg, log.With(logx.String("comp", "scheduler")), bus)

	var notif *notifier.Service
	if ad != nil {
		ncfg, err := mapNotifierConfig(cfg)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		notif = notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")), bus, store)
	}

	var (
		plat   alerts.Platform
		tgPlat *tgplatform.Platform
	)
	switch cfg.Platform.Driver {
	case "console":
		plat = console.New(o.console)
	default:
		if ad == nil {
			_ = store.Close()
			return nil, fmt.Errorf("platform %q needs telegram.token", cfg.Platform.Driver)
		}
		tgPlat = tgplatform.New(kit.ChatTarget{}, ad, notif, log)
		plat = tgPlat
	}

	acfg, err := mapAlertsConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	loc := location.NewStatic(cfg.Location.Enabled, cfg.Location.Lat, cfg.Location.Lon)
	svc := alerts.New(acfg, alerts.Options{
		Store:     store,
		Platform:  plat,
		Locator:   loc,
		Scheduler: sched,
		Bus:       bus,
		Log:       log,
	})
	if tgPlat != nil {
		tgPlat.SetObserver(svc)
	}

	var cmdm *router.CommandManager
	if ad != nil {
		cmdm = router.NewCommandManager(log.With(logx.String("comp", "commands")), ad, cfg.Telegram.OwnerUserIDs)
	}

	return &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		adapter:  ad,
		notif:    notif,
		sched:    sched,
		platform: plat,
		tgPlat:   tgPlat,
		locator:  loc,
		alerts:   svc,
		cmdm:     cmdm,
		http:     httpapi.New(mapHTTPConfig(cfg), svc, store, log),
		updates:  make(chan kit.Update, 256),
	}, nil
}

func setLogTarget(logs *logx.Service, cfg *config.Config) {
	raw := strings.TrimSpace(cfg.Telegram.GroupLog)
	if raw == "" {
		logs.SetTelegramTarget(0, 0)
		return
	}
	if chatID, err := strconv.ParseInt(raw, 10, 64); err == nil {
		logs.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
}

// Alerts exposes the alert service.
func (a *App) Alerts() *alerts.Service { return a.alerts }

// Done is closed when the app supervisor context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.startedAt = time.Now()
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	run := a.sup.Context()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateLive(cfg)
	})

	if a.adapter != nil {
		if err := a.adapter.Start(run, a.updates); err != nil {
			return err
		}
	}
	if a.notif != nil {
		a.notif.Start(run)
	}
	a.sched.Start(run)

	if a.cmdm != nil {
		cmds := &router.AlertCommands{
			API:      a.alerts,
			Location: a.location(),
			Status:   a.statusText,
		}
		a.cmdm.SetRegistry(run, cmds.Commands(), cmds.Callbacks())
		a.sup.Go("commands.dispatch", func(c context.Context) error {
			return a.cmdm.DispatchLoop(c, a.updates)
		})
	}

	a.http.Start(run)

	// Initialize retries until the platform grants permission, so a chat
	// that is briefly unreachable does not keep the process down.
	a.sup.GoRestart("alerts.initialize", a.initAlerts,
		rtsup.WithRestartBackoff(2*time.Second, 2*time.Minute),
	)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				if e.Type == eventbus.AlertDeliveryFailed {
					a.log.Warn("event", logx.String("type", e.Type), logx.Any("data", e.Data))
					continue
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		if err := systemd.Watchdog(c); err != nil {
			a.log.Warn("systemd watchdog stopped", logx.Err(err))
		}
	})

	if sent, err := systemd.Ready(); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started",
		logx.String("platform", a.cfgm.Get().Platform.Driver),
		logx.Bool("commands", a.cmdm != nil),
	)
	return nil
}

func (a *App) initAlerts(ctx context.Context) error {
	if a.tgPlat != nil {
		cfg := a.cfgm.Get()
		chatID, err := a.adapter.ResolveChat(ctx, cfg.Telegram.AlertChat)
		if err != nil {
			return fmt.Errorf("resolve alert chat: %w", err)
		}
		a.tgPlat.SetTarget(kit.ChatTarget{ChatID: chatID})
	}
	if err := a.alerts.Initialize(ctx); err != nil {
		return err
	}
	_, _ = systemd.Status("alerts ready")
	return nil
}

func (a *App) location() *time.Location {
	if tz := strings.TrimSpace(a.cfgm.Get().Scheduler.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.Local
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()

	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if max > 0 {
			// never extend the caller's deadline
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			if max > 0 {
				var cancel context.CancelFunc
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				if err := <-done; err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err))
				}
			}()
		}
	}

	step("http", time.Second, func(c context.Context) error { a.http.Stop(c); return nil })
	// Cleanup closes the platform, so it runs before the notifier drains.
	step("alerts", 2*time.Second, func(c context.Context) error { a.alerts.Cleanup(c); return nil })
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error {
		if a.notif != nil {
			a.notif.Stop(c)
		}
		return nil
	})
	step("adapter", 2*time.Second, func(c context.Context) error {
		if a.adapter != nil {
			return a.adapter.Stop(c)
		}
		return nil
	})
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
