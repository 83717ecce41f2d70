package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"alertbot/internal/alerts"
)

const maxBody = 64 << 10

// scheduleBody is the POST /v1/notifications/{category} payload.
// At and In are mutually exclusive; In is a Go duration string.
type scheduleBody struct {
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Body     string            `json:"body"`
	Severity string            `json:"severity"`
	Area     string            `json:"area"`
	Source   string            `json:"source"`
	Geofence *alerts.Geofence  `json:"geofence"`
	Extra    map[string]string `json:"extra"`
	At       time.Time         `json:"at"`
	In       string            `json:"in"`
	Repeat   string            `json:"repeat"`
}

func (b scheduleBody) request() (alerts.AlertRequest, error) {
	req := alerts.AlertRequest{
		Title:    b.Title,
		Message:  b.Message,
		Severity: b.Severity,
		Area:     b.Area,
		Source:   b.Source,
		Geofence: b.Geofence,
		Extra:    b.Extra,
		Trigger:  alerts.Trigger{At: b.At, Repeat: b.Repeat},
	}
	if req.Message == "" {
		req.Message = b.Body
	}
	if in := strings.TrimSpace(b.In); in != "" {
		d, err := time.ParseDuration(in)
		if err != nil {
			return req, err
		}
		req.Trigger.After = d
	}
	return req, nil
}

type listView struct {
	Notifications []alerts.Notification `json:"notifications"`
	Total         int                   `json:"total"`
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	all, err := s.api.Notifications(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	q := r.URL.Query()
	var cat alerts.Category
	if raw := q.Get("category"); raw != "" {
		if cat, err = alerts.ParseCategory(raw); err != nil {
			badRequest(w, err.Error())
			return
		}
	}
	unreadOnly := q.Get("unread") == "true" || q.Get("unread") == "1"
	limit := intParam(r, "limit", 0)

	out := make([]alerts.Notification, 0, len(all))
	for _, n := range all {
		if unreadOnly && n.Read {
			continue
		}
		if cat != "" && n.Category != cat {
			continue
		}
		out = append(out, n)
	}
	total := len(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	ok(w, listView{Notifications: out, Total: total})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	n, err := s.api.Notification(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		handleError(w, err)
		return
	}
	ok(w, n)
}

func (s *Server) unread(w http.ResponseWriter, r *http.Request) {
	c, err := s.api.UnreadCount(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	ok(w, map[string]int{"unread": c})
}

func (s *Server) schedule(w http.ResponseWriter, r *http.Request) {
	cat, err := alerts.ParseCategory(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	var body scheduleBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	req, err := body.request()
	if err != nil {
		badRequest(w, "invalid in: "+err.Error())
		return
	}
	id, err := s.api.Schedule(r.Context(), cat, req)
	if err != nil {
		handleError(w, err)
		return
	}
	created(w, map[string]string{"id": id, "category": string(cat)})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "key")
	if err := s.api.MarkAsRead(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	okMessage(w, "marked as read", map[string]string{"id": id})
}

func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request) {
	c, err := s.api.MarkAllAsRead(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	okMessage(w, "all marked as read", map[string]int{"marked": c})
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "key")
	if err := s.api.CancelNotification(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	okMessage(w, "cancelled", map[string]string{"id": id})
}

func (s *Server) clearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.api.ClearAllNotifications(r.Context()); err != nil {
		handleError(w, err)
		return
	}
	okMessage(w, "cleared", nil)
}

func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.audit.ListAudit(r.Context(), intParam(r, "limit", 50))
	if err != nil {
		handleError(w, err)
		return
	}
	ok(w, entries)
}

func intParam(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}
