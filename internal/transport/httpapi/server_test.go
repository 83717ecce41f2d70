package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertbot/internal/alerts"
	"alertbot/internal/storage"
	logx "alertbot/pkg/logx"
)

type fakeAPI struct {
	mu      sync.Mutex
	items   []alerts.Notification
	actors  []string
	lastReq alerts.AlertRequest
	lastCat alerts.Category
	err     error
}

func (f *fakeAPI) record(ctx context.Context) {
	f.actors = append(f.actors, alerts.ActorFrom(ctx))
}

func (f *fakeAPI) Notifications(context.Context) ([]alerts.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]alerts.Notification(nil), f.items...), f.err
}

func (f *fakeAPI) Notification(_ context.Context, id string) (alerts.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.items {
		if n.ID == id {
			return n, nil
		}
	}
	return alerts.Notification{}, fmt.Errorf("get %s: %w", id, alerts.ErrNotFound)
}

func (f *fakeAPI) UnreadCount(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := 0
	for _, n := range f.items {
		if !n.Read {
			c++
		}
	}
	return c, nil
}

func (f *fakeAPI) MarkAsRead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Read = true
			return nil
		}
	}
	return fmt.Errorf("read %s: %w", id, alerts.ErrNotFound)
}

func (f *fakeAPI) MarkAllAsRead(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	c := 0
	for i := range f.items {
		if !f.items[i].Read {
			f.items[i].Read = true
			c++
		}
	}
	return c, nil
}

func (f *fakeAPI) CancelNotification(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	for i, n := range f.items {
		if n.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("cancel %s: %w", id, alerts.ErrNotFound)
}

func (f *fakeAPI) ClearAllNotifications(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	f.items = nil
	return nil
}

func (f *fakeAPI) Schedule(ctx context.Context, cat alerts.Category, req alerts.AlertRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	if f.err != nil {
		return "", f.err
	}
	f.lastCat, f.lastReq = cat, req
	id := fmt.Sprintf("n%d", len(f.items)+1)
	f.items = append(f.items, alerts.Notification{ID: id, Category: cat, Title: req.Title, Body: req.Message})
	return id, nil
}

type fakeAudit []storage.AuditEntry

func (f fakeAudit) ListAudit(_ context.Context, limit int) ([]storage.AuditEntry, error) {
	if limit < len(f) {
		return f[:limit], nil
	}
	return f, nil
}

func newTestServer(t *testing.T, cfg Config, api *fakeAPI) *httptest.Server {
	t.Helper()
	s := New(cfg, api, fakeAudit{{Actor: "http", Action: "schedule", OK: true}, {Actor: "cli", Action: "clear", OK: true}}, logx.Nop())
	ts := httptest.NewServer(s.Handler(cfg))
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string, hdr ...string) (int, response) {
	t.Helper()
	var rd *strings.Reader
	if body != "" {
		rd = strings.NewReader(body)
	} else {
		rd = strings.NewReader("")
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var out response
	if strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	}
	return res.StatusCode, out
}

func TestScheduleWeatherAlert(t *testing.T) {
	api := &fakeAPI{}
	ts := newTestServer(t, Config{}, api)

	code, out := do(t, ts, http.MethodPost, "/v1/notifications/weather",
		`{"message":"Heavy rain","severity":"high","area":"Mumbai","in":"10m","geofence":{"lat":19,"lon":72.8,"radius_km":25}}`)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, out.Success)
	assert.Equal(t, "n1", out.Data.(map[string]any)["id"])

	assert.Equal(t, alerts.CategoryWeather, api.lastCat)
	assert.Equal(t, "high", api.lastReq.Severity)
	assert.Equal(t, 10*time.Minute, api.lastReq.Trigger.After)
	require.NotNil(t, api.lastReq.Geofence)
	assert.Equal(t, 25.0, api.lastReq.Geofence.RadiusKM)
	assert.Equal(t, []string{"http"}, api.actors)
}

func TestScheduleAliasAndBodyFallback(t *testing.T) {
	api := &fakeAPI{}
	ts := newTestServer(t, Config{}, api)

	code, _ := do(t, ts, http.MethodPost, "/v1/notifications/quake", `{"body":"M5.1 offshore"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, alerts.CategorySeismic, api.lastCat)
	assert.Equal(t, "M5.1 offshore", api.lastReq.Message)
}

func TestScheduleRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, Config{}, &fakeAPI{})

	code, out := do(t, ts, http.MethodPost, "/v1/notifications/volcano", `{"message":"x"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", out.Error.Code)

	code, _ = do(t, ts, http.MethodPost, "/v1/notifications/flood", `{"message":"x","in":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, ts, http.MethodPost, "/v1/notifications/flood", `{"message":"x","color":"red"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestErrorKindsMapToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("trigger: %w", alerts.ErrScheduling), http.StatusUnprocessableEntity},
		{fmt.Errorf("chat: %w", alerts.ErrPermissionDenied), http.StatusForbidden},
		{alerts.ErrNotInitialized, http.StatusServiceUnavailable},
		{fmt.Errorf("post: %w", alerts.ErrPlatform), http.StatusBadGateway},
	}
	for _, tc := range cases {
		api := &fakeAPI{err: tc.err}
		ts := newTestServer(t, Config{}, api)
		code, out := do(t, ts, http.MethodPost, "/v1/notifications/ndma", `{"message":"advisory"}`)
		assert.Equal(t, tc.code, code, tc.err.Error())
		assert.False(t, out.Success)
	}
}

func TestReadFlow(t *testing.T) {
	api := &fakeAPI{items: []alerts.Notification{
		{ID: "n1", Category: alerts.CategoryWeather},
		{ID: "n2", Category: alerts.CategoryFlood},
		{ID: "n3", Category: alerts.CategoryFlood, Read: true},
	}}
	ts := newTestServer(t, Config{}, api)

	code, out := do(t, ts, http.MethodGet, "/v1/notifications/unread", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2.0, out.Data.(map[string]any)["unread"])

	code, out = do(t, ts, http.MethodGet, "/v1/notifications?category=flood&unread=true", "")
	require.Equal(t, http.StatusOK, code)
	data := out.Data.(map[string]any)
	assert.Equal(t, 1.0, data["total"])

	code, _ = do(t, ts, http.MethodPost, "/v1/notifications/n1/read", "")
	require.Equal(t, http.StatusOK, code)

	code, out = do(t, ts, http.MethodPost, "/v1/notifications/read", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, out.Data.(map[string]any)["marked"])

	code, _ = do(t, ts, http.MethodPost, "/v1/notifications/n9/read", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGetCancelClear(t *testing.T) {
	api := &fakeAPI{items: []alerts.Notification{{ID: "n1"}, {ID: "n2"}}}
	ts := newTestServer(t, Config{}, api)

	code, out := do(t, ts, http.MethodGet, "/v1/notifications/n2", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "n2", out.Data.(map[string]any)["id"])

	code, _ = do(t, ts, http.MethodDelete, "/v1/notifications/n1", "")
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, ts, http.MethodDelete, "/v1/notifications/n1", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, ts, http.MethodDelete, "/v1/notifications", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, api.items)
}

func TestBearerToken(t *testing.T) {
	ts := newTestServer(t, Config{Token: "s3cret"}, &fakeAPI{})

	code, _ := do(t, ts, http.MethodGet, "/v1/notifications", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = do(t, ts, http.MethodGet, "/v1/notifications", "", "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = do(t, ts, http.MethodGet, "/v1/notifications", "", "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, ts, http.MethodGet, "/v1/notifications?token=s3cret", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, ts, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestAuditAndProfiler(t *testing.T) {
	ts := newTestServer(t, Config{Profiler: true}, &fakeAPI{})

	code, out := do(t, ts, http.MethodGet, "/v1/audit?limit=1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out.Data.([]any), 1)

	res, err := http.Get(ts.URL + "/debug/pprof/")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	off := newTestServer(t, Config{}, &fakeAPI{})
	res, err = http.Get(off.URL + "/debug/pprof/")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestBindPolicy(t *testing.T) {
	assert.True(t, isLoopbackAddr("127.0.0.1:8085"))
	assert.True(t, isLoopbackAddr("localhost:1"))
	assert.True(t, isLoopbackAddr("[::1]:80"))
	assert.False(t, isLoopbackAddr(":8085"))
	assert.False(t, isLoopbackAddr("10.0.0.2:80"))

	assert.ErrorIs(t, checkBind("0.0.0.0:8085", Config{}), errInsecureBind)
	assert.NoError(t, checkBind("0.0.0.0:8085", Config{Token: "t"}))
	assert.NoError(t, checkBind("0.0.0.0:8085", Config{AllowInsecure: true}))
	assert.NoError(t, checkBind("127.0.0.1:0", Config{}))
}

func TestStartStop(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, &fakeAPI{}, nil, logx.Nop())
	ctx := context.Background()
	s.Start(ctx)

	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	res, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	s.Stop(stopCtx)
	assert.Empty(t, s.Addr())

	s.Reconfigure(ctx, Config{Enabled: false})
	assert.Empty(t, s.Addr())
}
