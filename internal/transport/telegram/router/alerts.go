package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"alertbot/internal/alerts"
	kit "alertbot/internal/transport"
	"alertbot/pkg/tgui"
)

// AlertsAPI is the part of the alerts service the bot exposes.
type AlertsAPI interface {
	Notifications(ctx context.Context) ([]alerts.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) (int, error)
	CancelNotification(ctx context.Context, id string) error
	ClearAllNotifications(ctx context.Context) error
	ScheduleLocalNotification(ctx context.Context, req alerts.LocalRequest) (string, error)
	Schedule(ctx context.Context, cat alerts.Category, req alerts.AlertRequest) (string, error)
}

// AlertCommands builds the bot's alert command set.
type AlertCommands struct {
	API AlertsAPI
	// Location resolves HH:MM and local timestamps. Nil means time.Local.
	Location *time.Location
	// Status renders /status. Nil hides the command.
	Status func(ctx context.Context) string
	Now    func() time.Time
}

const (
	callbackGroup = "alerts"
	defaultLimit  = 10
)

// ReadButton is attached to delivered notifications.
func ReadButton(id string) kit.Button {
	return kit.Button{Text: "✅ Mark read", Data: callbackGroup + ":read:" + id}
}

func (a *AlertCommands) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *AlertCommands) loc() *time.Location {
	if a.Location != nil {
		return a.Location
	}
	return time.Local
}

func (a *AlertCommands) Commands() []Command {
	cmds := []Command{
		{
			Route:       "alerts",
			Aliases:     []string{"list", "ls"},
			Description: "list notifications, most recent first",
			Usage:       "/alerts [--unread] [--limit N]",
			Access:      AccessOwnerOnly,
			Handle:      a.handleList,
		},
		{
			Route:       "unread",
			Description: "count unread notifications",
			Usage:       "/unread",
			Access:      AccessOwnerOnly,
			Handle:      a.handleUnread,
		},
		{
			Route:       "read",
			Description: "mark a notification read",
			Usage:       "/read <id|all>",
			Access:      AccessOwnerOnly,
			Handle:      a.handleRead,
		},
		{
			Route:       "cancel",
			Aliases:     []string{"rm"},
			Description: "cancel a notification",
			Usage:       "/cancel <id>",
			Access:      AccessOwnerOnly,
			Handle:      a.handleCancel,
		},
		{
			Route:       "clear",
			Description: "remove every notification",
			Usage:       "/clear [--yes]",
			Access:      AccessOwnerOnly,
			Handle:      a.handleClear,
		},
		{
			Route:       "remind",
			Description: "schedule a reminder",
			Usage:       "/remind <now|10m|HH:MM|RFC3339> <text> [--repeat SPEC]",
			Access:      AccessOwnerOnly,
			Handle:      a.handleRemind,
		},
	}
	hazards := []struct {
		route string
		cat   alerts.Category
		alias []string
		desc  string
	}{
		{"weather", alerts.CategoryWeather, nil, "schedule a weather alert"},
		{"quake", alerts.CategorySeismic, []string{"seismic"}, "schedule an earthquake alert"},
		{"flood", alerts.CategoryFlood, nil, "schedule a flood alert"},
		{"ndma", alerts.CategoryNDMA, []string{"advisory"}, "schedule an NDMA advisory"},
	}
	for _, h := range hazards {
		cat := h.cat
		cmds = append(cmds, Command{
			Route:       h.route,
			Aliases:     h.alias,
			Description: h.desc,
			Usage:       "/" + h.route + " <message> [--severity low|moderate|high|critical] [--area A] [--source S] [--title T] [--in 10m|--at HH:MM] [--repeat SPEC] [--geo lat,lon,km]",
			Access:      AccessOwnerOnly,
			Handle: func(ctx context.Context, req *Request) error {
				return a.handleHazard(ctx, req, cat)
			},
		})
	}
	if a.Status != nil {
		cmds = append(cmds, Command{
			Route:       "status",
			Description: "service status",
			Usage:       "/status",
			Access:      AccessOwnerOnly,
			Handle: func(ctx context.Context, req *Request) error {
				req.Reply(ctx, a.Status(ctx), &kit.SendOptions{DisablePreview: true, ParseMode: "HTML"})
				return nil
			},
		})
	}
	return cmds
}

func (a *AlertCommands) Callbacks() []CallbackRoute {
	return []CallbackRoute{
		{
			Group:  callbackGroup,
			Action: "read",
			Handle: func(ctx context.Context, req *Request, id string) error {
				err := a.API.MarkAsRead(ctx, id)
				text := "marked as read"
				if err != nil {
					text = describeError(err)
				}
				_ = req.Adapter.AnswerCallback(ctx, req.Update.Callback.ID, text)
				return err
			},
		},
		{
			Group:  callbackGroup,
			Action: "clear",
			Handle: func(ctx context.Context, req *Request, _ string) error {
				err := a.API.ClearAllNotifications(ctx)
				text := "cleared"
				if err != nil {
					text = describeError(err)
				}
				_ = req.Adapter.AnswerCallback(ctx, req.Update.Callback.ID, text)
				if err == nil {
					req.Reply(ctx, "🧹 all notifications cleared", nil)
				}
				return err
			},
		},
	}
}

func (a *AlertCommands) handleList(ctx context.Context, req *Request) error {
	limit := defaultLimit
	if v, ok := req.Flags["limit"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return usageError("/alerts [--unread] [--limit N]")
		}
		limit = n
	}
	list, err := a.API.Notifications(ctx)
	if err != nil {
		return err
	}
	if req.BoolFlags["unread"] {
		kept := list[:0]
		for _, n := range list {
			if !n.Read {
				kept = append(kept, n)
			}
		}
		list = kept
	}
	if len(list) == 0 {
		req.Reply(ctx, "📭 no notifications", nil)
		return nil
	}
	req.Reply(ctx, a.renderList(list, limit), &kit.SendOptions{DisablePreview: true, ParseMode: "HTML"})
	return nil
}

func (a *AlertCommands) renderList(list []alerts.Notification, limit int) string {
	lines := []tgui.H{tgui.Raw(fmt.Sprintf("🔔 <b>Notifications</b> (%d)", len(list)))}
	for i, n := range list {
		if i == limit {
			lines = append(lines, tgui.Esc(fmt.Sprintf("… and %d more", len(list)-limit)))
			break
		}
		head := tgui.JoinH(" ", "•", tgui.Code(n.ID), tgui.Esc(string(n.Category)))
		if n.Severity != "" {
			head = tgui.JoinH(" · ", head, tgui.Esc(string(n.Severity)))
		}
		if n.Title != "" {
			head = tgui.JoinH(" — ", head, tgui.Esc(tgui.TruncRunes(n.Title, 80)))
		}
		lines = append(lines, head, "   "+a.describeState(n))
	}
	return tgui.JoinH("\n", lines...).String()
}

func (a *AlertCommands) describeState(n alerts.Notification) tgui.H {
	var parts []tgui.H
	switch n.State {
	case alerts.StateDelivered:
		parts = append(parts, tgui.Esc("delivered "+humanize.RelTime(n.DeliveredAt, a.now(), "ago", "from now")))
		if n.Deliveries > 1 {
			parts = append(parts, tgui.Esc(humanize.Ordinal(n.Deliveries)+" time"))
		}
	default:
		parts = append(parts, tgui.Esc("fires "+humanize.RelTime(n.FireAt, a.now(), "ago", "from now")))
	}
	if n.Repeat != "" {
		parts = append(parts, tgui.Esc("repeats "+n.Repeat))
	}
	if n.Read {
		parts = append(parts, "read")
	} else {
		parts = append(parts, tgui.B("unread"))
	}
	if n.LastError != "" {
		parts = append(parts, tgui.Esc("⚠️ "+n.LastError))
	}
	return tgui.JoinH(" · ", parts...)
}

func (a *AlertCommands) handleUnread(ctx context.Context, req *Request) error {
	n, err := a.API.UnreadCount(ctx)
	if err != nil {
		return err
	}
	req.Reply(ctx, fmt.Sprintf("📬 %s unread", humanize.Comma(int64(n))), nil)
	return nil
}

func (a *AlertCommands) handleRead(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		return usageError("/read <id|all>")
	}
	if strings.EqualFold(req.Args[0], "all") {
		n, err := a.API.MarkAllAsRead(ctx)
		if err != nil {
			return err
		}
		req.Reply(ctx, fmt.Sprintf("✅ marked %d read", n), nil)
		return nil
	}
	if err := a.API.MarkAsRead(ctx, req.Args[0]); err != nil {
		return err
	}
	req.Reply(ctx, "✅ marked read", nil)
	return nil
}

func (a *AlertCommands) handleCancel(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		return usageError("/cancel <id>")
	}
	if err := a.API.CancelNotification(ctx, req.Args[0]); err != nil {
		return err
	}
	req.Reply(ctx, "🗑 cancelled "+req.Args[0], nil)
	return nil
}

func (a *AlertCommands) handleClear(ctx context.Context, req *Request) error {
	if req.BoolFlags["yes"] || req.BoolFlags["y"] {
		if err := a.API.ClearAllNotifications(ctx); err != nil {
			return err
		}
		req.Reply(ctx, "🧹 all notifications cleared", nil)
		return nil
	}
	req.Reply(ctx, "Remove every notification?", &kit.SendOptions{
		Buttons: [][]kit.Button{{{Text: "🧹 Clear all", Data: callbackGroup + ":clear"}}},
	})
	return nil
}

func (a *AlertCommands) handleRemind(ctx context.Context, req *Request) error {
	const usage = "/remind <now|10m|HH:MM|RFC3339> <text> [--repeat SPEC]"
	if len(req.Args) < 2 {
		return usageError(usage)
	}
	trig, err := parseWhen(req.Args[0], a.now(), a.loc())
	if err != nil {
		return usageError(usage + " (" + err.Error() + ")")
	}
	trig.Repeat = req.Flags["repeat"]
	id, err := a.API.ScheduleLocalNotification(ctx, alerts.LocalRequest{
		Title:   "Reminder",
		Body:    strings.Join(req.Args[1:], " "),
		Trigger: trig,
	})
	if err != nil {
		return err
	}
	req.Reply(ctx, a.scheduledText(id, trig), nil)
	return nil
}

func (a *AlertCommands) handleHazard(ctx context.Context, req *Request, cat alerts.Category) error {
	usage := "/" + req.Command + " <message> [--severity S] [--area A] [--in 10m|--at HH:MM] [--repeat SPEC] [--geo lat,lon,km]"
	if len(req.Args) == 0 {
		return usageError(usage)
	}
	trig, err := a.triggerFromFlags(req.Flags)
	if err != nil {
		return usageError(usage + " (" + err.Error() + ")")
	}
	r := alerts.AlertRequest{
		Title:    req.Flags["title"],
		Message:  strings.Join(req.Args, " "),
		Severity: firstNonEmpty(req.Flags["severity"], req.Flags["s"]),
		Area:     firstNonEmpty(req.Flags["area"], req.Flags["a"]),
		Source:   firstNonEmpty(req.Flags["source"], "telegram"),
		Trigger:  trig,
	}
	if g, ok := req.Flags["geo"]; ok {
		fence, err := parseGeofence(g)
		if err != nil {
			return usageError(usage + " (" + err.Error() + ")")
		}
		r.Geofence = &fence
	}
	id, err := a.API.Schedule(ctx, cat, r)
	if err != nil {
		return err
	}
	req.Reply(ctx, a.scheduledText(id, trig), nil)
	return nil
}

func (a *AlertCommands) triggerFromFlags(flags map[string]string) (alerts.Trigger, error) {
	in, hasIn := flags["in"]
	at, hasAt := flags["at"]
	var trig alerts.Trigger
	switch {
	case hasIn && hasAt:
		return trig, fmt.Errorf("--in and --at are exclusive")
	case hasIn:
		d, err := time.ParseDuration(in)
		if err != nil {
			return trig, err
		}
		trig.After = d
	case hasAt:
		t, err := parseWhen(at, a.now(), a.loc())
		if err != nil {
			return trig, err
		}
		trig = t
	}
	trig.Repeat = flags["repeat"]
	return trig, nil
}

func (a *AlertCommands) scheduledText(id string, trig alerts.Trigger) string {
	when := "now"
	switch {
	case trig.After > 0:
		now := a.now()
		when = humanize.RelTime(now.Add(trig.After), now, "ago", "from now")
	case !trig.At.IsZero():
		when = "at " + trig.At.In(a.loc()).Format("Mon 02 Jan 15:04 MST")
	}
	text := fmt.Sprintf("⏰ scheduled %s, fires %s", id, when)
	if trig.Repeat != "" {
		text += ", repeating " + trig.Repeat
	}
	return text
}

// parseWhen accepts "now", a Go duration, HH:MM (next occurrence in loc),
// RFC3339, or "2006-01-02T15:04" in loc.
func parseWhen(s string, now time.Time, loc *time.Location) (alerts.Trigger, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "now") {
		return alerts.Trigger{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return alerts.Trigger{}, fmt.Errorf("negative delay %s", s)
		}
		return alerts.Trigger{After: d}, nil
	}
	if t, err := time.Parse("15:04", s); err == nil {
		local := now.In(loc)
		at := time.Date(local.Year(), local.Month(), local.Day(), t.Hour(), t.Minute(), 0, 0, loc)
		if !at.After(local) {
			at = at.AddDate(0, 0, 1)
		}
		return alerts.Trigger{At: at}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return alerts.Trigger{At: t}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04", s, loc); err == nil {
		return alerts.Trigger{At: t}, nil
	}
	return alerts.Trigger{}, fmt.Errorf("unrecognised time %q", s)
}

func parseGeofence(s string) (alerts.Geofence, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return alerts.Geofence{}, fmt.Errorf("geo wants lat,lon,km")
	}
	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return alerts.Geofence{}, fmt.Errorf("geo %q: %w", p, err)
		}
		vals[i] = v
	}
	return alerts.Geofence{Lat: vals[0], Lon: vals[1], RadiusKM: vals[2]}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
