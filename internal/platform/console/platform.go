// Package console prints alerts to a terminal. It is the platform used
// when no Telegram chat is configured.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"alertbot/internal/alerts"
)

type Platform struct {
	mu       sync.Mutex
	w        io.Writer
	channels map[alerts.Category]alerts.Channel
	open     bool
}

var _ alerts.Platform = (*Platform)(nil)

func New(w io.Writer) *Platform {
	return &Platform{w: w, channels: map[alerts.Category]alerts.Channel{}}
}

func (p *Platform) RequestPermission(context.Context) error {
	p.mu.Lock()
	p.open = true
	p.mu.Unlock()
	return nil
}

func (p *Platform) RegisterChannels(_ context.Context, chs []alerts.Channel) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range chs {
		p.channels[c.Category] = c
	}
	return nil
}

func (p *Platform) Post(_ context.Context, n alerts.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return fmt.Errorf("%w: console closed", alerts.ErrPlatform)
	}
	bell := ""
	if n.Sound != alerts.SoundNone {
		bell = "\a"
	}
	name := p.channels[n.Category].Name
	if name == "" {
		name = string(n.Category)
	}
	header := fmt.Sprintf("── %s [%s] p%d ", name, n.ID, n.Priority)
	if pad := 60 - len([]rune(header)); pad > 0 {
		header += strings.Repeat("─", pad)
	}
	_, err := fmt.Fprintf(p.w, "%s%s\n%s\n\n", bell, header, n.Text())
	return err
}

func (p *Platform) Withdraw(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil
	}
	_, err := fmt.Fprintf(p.w, "── withdrawn [%s]\n", id)
	return err
}

func (p *Platform) Close() error {
	p.mu.Lock()
	p.open = false
	p.mu.Unlock()
	return nil
}
