package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertbot/internal/alerts"
	kit "alertbot/internal/transport"
	logx "alertbot/pkg/logx"
)

type fakeChat struct {
	probeErr error
	deleted  []kit.MessageRef
}

func (f *fakeChat) Probe(context.Context, kit.ChatTarget) error { return f.probeErr }

func (f *fakeChat) DeleteText(_ context.Context, ref kit.MessageRef) error {
	f.deleted = append(f.deleted, ref)
	return nil
}

// fakeNotifier sends synchronously, succeeding unless failWith is set.
type fakeNotifier struct {
	mu       sync.Mutex
	got      []kit.Notification
	failWith error
}

func (f *fakeNotifier) Notify(_ context.Context, n kit.Notification) error {
	f.mu.Lock()
	f.got = append(f.got, n)
	fail := f.failWith
	f.mu.Unlock()
	if fail != nil {
		n.OnFailed(fail)
		return nil
	}
	n.OnSent(kit.MessageRef{ChatID: n.Target.ChatID, ThreadID: n.Target.ThreadID, MessageID: 99})
	return nil
}

type observer struct {
	ids  []string
	errs []error
}

func (o *observer) DeliveryFailed(_ context.Context, id string, err error) {
	o.ids = append(o.ids, id)
	o.errs = append(o.errs, err)
}

func newPlatform(t *testing.T) (*Platform, *fakeChat, *fakeNotifier) {
	t.Helper()
	chat := &fakeChat{}
	n := &fakeNotifier{}
	p := New(kit.ChatTarget{ChatID: -100}, chat, n, logx.Nop())
	require.NoError(t, p.RequestPermission(context.Background()))
	return p, chat, n
}

func TestRequestPermissionMapsForbidden(t *testing.T) {
	chat := &fakeChat{probeErr: errors.Join(kit.ErrForbidden, errors.New("bot was kicked"))}
	p := New(kit.ChatTarget{ChatID: -100}, chat, &fakeNotifier{}, logx.Nop())
	err := p.RequestPermission(context.Background())
	assert.ErrorIs(t, err, alerts.ErrPermissionDenied)
}

func TestRequestPermissionNeedsChat(t *testing.T) {
	p := New(kit.ChatTarget{}, &fakeChat{}, &fakeNotifier{}, logx.Nop())
	assert.ErrorIs(t, p.RequestPermission(context.Background()), alerts.ErrPlatform)
}

func TestPostRoutesToCategoryThread(t *testing.T) {
	p, _, n := newPlatform(t)
	ctx := context.Background()
	require.NoError(t, p.RegisterChannels(ctx, []alerts.Channel{
		{Category: alerts.CategoryFlood, ThreadID: 12, Sound: alerts.SoundSiren},
		{Category: alerts.CategoryLocal, Sound: alerts.SoundNone},
	}))

	require.NoError(t, p.Post(ctx, alerts.Notification{ID: "n1", Category: alerts.CategoryFlood, Title: "Flood", Body: "x", Priority: 8, Deliveries: 1}))
	require.NoError(t, p.Post(ctx, alerts.Notification{ID: "n2", Category: alerts.CategoryLocal, Title: "Tea", Deliveries: 3}))

	require.Len(t, n.got, 2)
	assert.Equal(t, 12, n.got[0].Target.ThreadID)
	assert.Equal(t, int64(-100), n.got[0].Target.ChatID)
	assert.False(t, n.got[0].Options.Silent)
	assert.Equal(t, "alert:n1:1", n.got[0].Key)
	assert.Equal(t, "alerts:read:n1", n.got[0].Options.Buttons[0][0].Data)
	assert.Equal(t, 0, n.got[1].Target.ThreadID)
	assert.True(t, n.got[1].Options.Silent)
	assert.Equal(t, "alert:n2:3", n.got[1].Key)
}

func TestWithdrawDeletesSentMessage(t *testing.T) {
	p, chat, _ := newPlatform(t)
	ctx := context.Background()
	require.NoError(t, p.Post(ctx, alerts.Notification{ID: "n1", Category: alerts.CategoryWeather, Title: "Rain"}))

	require.NoError(t, p.Withdraw(ctx, "n1"))
	require.Len(t, chat.deleted, 1)
	assert.Equal(t, 99, chat.deleted[0].MessageID)

	// Second withdraw has nothing left to delete.
	require.NoError(t, p.Withdraw(ctx, "n1"))
	assert.Len(t, chat.deleted, 1)
}

func TestFailedSendReachesObserver(t *testing.T) {
	p, _, n := newPlatform(t)
	o := &observer{}
	p.SetObserver(o)
	n.failWith = errors.New("telegram: Bad Request (400)")

	require.NoError(t, p.Post(context.Background(), alerts.Notification{ID: "n5", Category: alerts.CategoryNDMA}))
	assert.Equal(t, []string{"n5"}, o.ids)
}

func TestClosedPlatformRejectsPosts(t *testing.T) {
	p, _, _ := newPlatform(t)
	require.NoError(t, p.Close())
	err := p.Post(context.Background(), alerts.Notification{ID: "n1"})
	assert.ErrorIs(t, err, alerts.ErrPlatform)

	require.NoError(t, p.RequestPermission(context.Background()))
	assert.NoError(t, p.Post(context.Background(), alerts.Notification{ID: "n1"}))
}
