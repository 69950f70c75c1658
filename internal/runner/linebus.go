package runner

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aki/fujita/internal/core/logger"
)

// LineBus stores recent line events and fans them out to subscribers.
type LineBus struct {
	// deliverMu serialises fan-out and subscribe-replay so every
	// subscriber sees events in arrival order, exactly once.
	deliverMu sync.Mutex

	mu          sync.Mutex
	cache       *lineCache
	subscribers []LineSubscriber

	logger logger.Logger
	now    func() time.Time
}

// NewLineBus creates a bus that keeps the last cacheSize events.
func NewLineBus(cacheSize int, log logger.Logger) *LineBus {
	if log == nil {
		log = logger.Nop()
	}
	return &LineBus{
		cache:  newLineCache(cacheSize),
		logger: log,
		now:    time.Now,
	}
}

// Publish records a new line and delivers it to every subscriber.
func (b *LineBus) Publish(stream Stream, text string) LineEvent {
	ev := LineEvent{
		ID:     uuid.New().String(),
		Time:   b.now(),
		Stream: stream,
		Text:   text,
	}

	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.Lock()
	b.cache.Append(ev)
	subs := make([]LineSubscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, sub := range subs {
		b.deliver(sub, ev)
	}
	return ev
}

// Subscribe replays the cache to sub, oldest first, then registers it for
// live events. Subscribing a registered subscriber again does nothing.
// Must not be called from inside a line callback.
func (b *LineBus) Subscribe(sub LineSubscriber) {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.Lock()
	if b.indexOf(sub) >= 0 {
		b.mu.Unlock()
		return
	}
	replay := b.cache.Events()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()

	b.logger.Debug("adding line subscriber", "replay", len(replay))
	for _, ev := range replay {
		b.deliver(sub, ev)
	}
}

// Unsubscribe removes sub. It is idempotent and safe to call from inside
// OnLine; the in-flight fan-out still completes on its snapshot.
func (b *LineBus) Unsubscribe(sub LineSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(sub)
	if i < 0 {
		return
	}
	b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
	b.logger.Debug("removed line subscriber", "remaining", len(b.subscribers))
}

// Snapshot returns the cached events, oldest first.
func (b *LineBus) Snapshot() []LineEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cache.Events()
}

// Len returns the number of cached events.
func (b *LineBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cache.Len()
}

// Cap returns the cache capacity.
func (b *LineBus) Cap() int {
	return b.cache.Cap()
}

// Subscribers returns the number of registered subscribers.
func (b *LineBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// indexOf must be called with mu held
func (b *LineBus) indexOf(sub LineSubscriber) int {
	for i, s := range b.subscribers {
		if s == sub {
			return i
		}
	}
	return -1
}

func (b *LineBus) deliver(sub LineSubscriber, ev LineEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("line subscriber panicked", "panic", r, "event", ev.ID)
		}
	}()
	sub.OnLine(ev)
}
