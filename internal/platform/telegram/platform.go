// Package telegram delivers alerts to a Telegram chat through the notifier
// pipeline.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"alertbot/internal/alerts"
	kit "alertbot/internal/transport"
	"alertbot/internal/transport/telegram/router"
	logx "alertbot/pkg/logx"
)

// Chat is what the platform needs from the Telegram adapter.
type Chat interface {
	kit.Prober
	DeleteText(ctx context.Context, ref kit.MessageRef) error
}

type Notifier interface {
	Notify(ctx context.Context, n kit.Notification) error
}

// Observer hears about deliveries that failed after Post returned.
type Observer interface {
	DeliveryFailed(ctx context.Context, id string, err error)
}

type channel struct {
	threadID int
	silent   bool
}

type Platform struct {
	log      logx.Logger
	chat     Chat
	notifier Notifier

	mu       sync.Mutex
	target   kit.ChatTarget
	open     bool
	channels map[alerts.Category]channel
	refs     map[string]kit.MessageRef
	observer Observer
}

var _ alerts.Platform = (*Platform)(nil)

func New(target kit.ChatTarget, chat Chat, notifier Notifier, log logx.Logger) *Platform {
	return &Platform{
		log:      log.With(logx.String("comp", "platform.telegram")),
		chat:     chat,
		notifier: notifier,
		target:   target,
		channels: map[alerts.Category]channel{},
		refs:     map[string]kit.MessageRef{},
	}
}

func (p *Platform) SetObserver(o Observer) {
	p.mu.Lock()
	p.observer = o
	p.mu.Unlock()
}

// SetTarget moves future deliveries to another chat.
func (p *Platform) SetTarget(t kit.ChatTarget) {
	p.mu.Lock()
	p.target = t
	p.mu.Unlock()
}

// RequestPermission probes the alert chat. A chat that refuses the bot
// maps to alerts.ErrPermissionDenied.
func (p *Platform) RequestPermission(ctx context.Context) error {
	p.mu.Lock()
	target := p.target
	p.mu.Unlock()
	if target.ChatID == 0 {
		return fmt.Errorf("%w: telegram.alert_chat is not set", alerts.ErrPlatform)
	}
	if err := p.chat.Probe(ctx, target); err != nil {
		if errors.Is(err, kit.ErrForbidden) {
			return fmt.Errorf("%w: chat %d: %v", alerts.ErrPermissionDenied, target.ChatID, err)
		}
		return fmt.Errorf("probe chat %d: %w", target.ChatID, err)
	}
	p.mu.Lock()
	p.open = true
	p.mu.Unlock()
	p.log.Debug("alert chat reachable", logx.Int64("chat_id", target.ChatID))
	return nil
}

// RegisterChannels maps each category to a forum thread and a silent flag.
func (p *Platform) RegisterChannels(_ context.Context, chs []alerts.Channel) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = make(map[alerts.Category]channel, len(chs))
	for _, c := range chs {
		p.channels[c.Category] = channel{threadID: c.ThreadID, silent: c.Sound == alerts.SoundNone}
	}
	return nil
}

// Post queues n for sending. A send failure after retries reaches the Observer.
func (p *Platform) Post(ctx context.Context, n alerts.Notification) error {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return fmt.Errorf("%w: telegram platform closed", alerts.ErrPlatform)
	}
	to := p.target
	ch := p.channels[n.Category]
	p.mu.Unlock()
	if ch.threadID != 0 {
		to.ThreadID = ch.threadID
	}

	id := n.ID
	return p.notifier.Notify(ctx, kit.Notification{
		Channel:  "telegram",
		Priority: n.Priority,
		Target:   to,
		Text:     n.Text(),
		Options: &kit.SendOptions{
			DisablePreview: true,
			Silent:         ch.silent || n.Sound == alerts.SoundNone,
			Buttons:        [][]kit.Button{{router.ReadButton(id)}},
		},
		Key: fmt.Sprintf("alert:%s:%d", id, n.Deliveries),
		OnSent: func(ref kit.MessageRef) {
			p.mu.Lock()
			p.refs[id] = ref
			p.mu.Unlock()
		},
		OnFailed: func(err error) {
			p.mu.Lock()
			o := p.observer
			p.mu.Unlock()
			if o != nil {
				o.DeliveryFailed(context.Background(), id, err)
			}
		},
	})
}

// Withdraw deletes the last message sent for id, if any.
func (p *Platform) Withdraw(ctx context.Context, id string) error {
	p.mu.Lock()
	ref, ok := p.refs[id]
	delete(p.refs, id)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	if err := p.chat.DeleteText(ctx, ref); err != nil && !errors.Is(err, kit.ErrNotFound) {
		return fmt.Errorf("delete message %d: %w", ref.MessageID, err)
	}
	return nil
}

// Close stops accepting posts. Sent message refs are kept for Withdraw.
func (p *Platform) Close() error {
	p.mu.Lock()
	p.open = false
	p.mu.Unlock()
	return nil
}
