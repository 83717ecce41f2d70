package alerts

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"alertbot/internal/eventbus"
	"alertbot/internal/scheduler"
	"alertbot/internal/storage"
	"alertbot/pkg/logx"

	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	mu        sync.Mutex
	permErr   error
	postErr   error
	channels  []Channel
	posted    []Notification
	withdrawn []string
	closed    int
}

func (p *fakePlatform) RequestPermission(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permErr
}

func (p *fakePlatform) RegisterChannels(_ context.Context, ch []Channel) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append([]Channel(nil), ch...)
	return nil
}

func (p *fakePlatform) Post(_ context.Context, n Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.postErr != nil {
		return p.postErr
	}
	p.posted = append(p.posted, n)
	return nil
}

func (p *fakePlatform) Withdraw(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.withdrawn = append(p.withdrawn, id)
	return nil
}

func (p *fakePlatform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *fakePlatform) Posted() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Notification(nil), p.posted...)
}

func (p *fakePlatform) setPostErr(err error) {
	p.mu.Lock()
	p.postErr = err
	p.mu.Unlock()
}

type fakeLocator struct {
	permErr error
	pos     Position
}

func (l fakeLocator) RequestPermission(context.Context) error { return l.permErr }

func (l fakeLocator) CurrentPosition(context.Context) (Position, error) { return l.pos, nil }

type harness struct {
	svc      *Service
	platform *fakePlatform
	store    storage.Store
	sched    *scheduler.Service
	bus      eventbus.Bus
}

type harnessOpt func(*Config, *Options)

func newHarness(t *testing.T, opts ...harnessOpt) *harness {
	t.Helper()
	h := &harness{
		platform: &fakePlatform{},
		store:    storage.NewMemory(),
		bus:      eventbus.New(),
	}
	h.sched = scheduler.New(scheduler.Config{}, logx.Nop(), h.bus)
	h.sched.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		h.sched.Stop(ctx)
	})

	var seq atomic.Int64
	cfg := Config{}
	o := Options{
		Store:     h.store,
		Platform:  h.platform,
		Scheduler: h.sched,
		Bus:       h.bus,
		Log:       logx.Nop(),
		NewID:     func() string { return fmt.Sprintf("n%d", seq.Add(1)) },
	}
	for _, fn := range opts {
		fn(&cfg, &o)
	}
	h.svc = New(cfg, o)
	return h
}

func (h *harness) init(t *testing.T) {
	t.Helper()
	require.NoError(t, h.svc.Initialize(context.Background()))
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}
