package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"alertbot/internal/alerts"
	"alertbot/internal/scheduler"
	"alertbot/pkg/tgui"
)

// statusText renders /status as Telegram HTML.
func (a *App) statusText(ctx context.Context) string {
	cfg := a.cfgm.Get()
	var b strings.Builder
	b.WriteString(tgui.B("alertbot").String() + "\n")
	fmt.Fprintf(&b, "up since %s\n", humanize.Time(a.startedAt))

	state := "not initialized"
	if a.alerts.Initialized() {
		state = "ready"
	}
	fmt.Fprintf(&b, "platform: %s (%s)\n", tgui.Esc(cfg.Platform.Driver), state)
	fmt.Fprintf(&b, "storage: %s\n", tgui.Esc(cfg.Storage.Driver))

	if list, err := a.alerts.Notifications(ctx); err != nil {
		fmt.Fprintf(&b, "notifications: error: %s\n", tgui.Esc(err.Error()))
	} else {
		unread, scheduled := 0, 0
		for _, n := range list {
			if !n.Read {
				unread++
			}
			if n.State == alerts.StateScheduled {
				scheduled++
			}
		}
		fmt.Fprintf(&b, "notifications: %s total, %s unread, %s pending\n",
			humanize.Comma(int64(len(list))), humanize.Comma(int64(unread)), humanize.Comma(int64(scheduled)))
	}

	snap := a.sched.Snapshot()
	fmt.Fprintf(&b, "triggers: %d once, %d recurring (%s)\n", len(snap.Once), len(snap.Schedules), tgui.Esc(snap.Timezone))
	if next := nextTrigger(snap.Once); !next.IsZero() {
		fmt.Fprintf(&b, "next fire: %s\n", humanize.Time(next))
	}

	if a.notif != nil {
		st := a.notif.Stats()
		fmt.Fprintf(&b, "notifier: %d sent, %d failed, %d deduped, %d pending\n", st.Sent, st.Failed, st.Deduped, st.Pending)
	}
	if a.sup != nil {
		c := a.sup.Counters()
		fmt.Fprintf(&b, "goroutines: %d active, %d started\n", c.Active, c.Started)
	}
	return strings.TrimRight(b.String(), "\n")
}

func nextTrigger(once []scheduler.OnceInfo) time.Time {
	var next time.Time
	for _, o := range once {
		if next.IsZero() || o.At.Before(next) {
			next = o.At
		}
	}
	return next
}
