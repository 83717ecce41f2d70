package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by alertbot components.
const (
	AlertScheduled       = "alerts.scheduled"
	AlertDelivered       = "alerts.delivered"
	AlertDeliveryFailed  = "alerts.delivery_failed"
	AlertRead            = "alerts.read"
	AlertCancelled       = "alerts.cancelled"
	AlertsCleared        = "alerts.cleared"
	NotifierQueued       = "notifier.queued"
	NotifierSent         = "notifier.sent"
	NotifierDeduped      = "notifier.deduped"
	NotifierDropped      = "notifier.dropped"
	NotifierFailed       = "notifier.failed"
	SchedulerTriggerFail = "scheduler.trigger_failed"
)

// Event is a small in-memory signal used to decouple components.
//
// Publish never blocks; a subscriber whose buffer is full misses events.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Hold the read lock across sends: unsubscribe takes the write lock before
	// closing, so a send never races a close.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, unsub
}

// Publish is a nil-safe helper for optional buses.
func Publish(b Bus, typ string, data any) {
	if b == nil {
		return
	}
	b.Publish(Event{Type: typ, Time: time.Now(), Data: data})
}
