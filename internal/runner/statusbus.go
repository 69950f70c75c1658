package runner

import (
	"sync"

	"github.com/aki/fujita/internal/core/logger"
)

// StatusBus holds the current status and notifies subscribers of changes.
//
// Events are delivered in the order they were posted. A status published
// from inside OnStatus, or while another goroutine is delivering, is queued
// and delivered by the goroutine already draining the bus.
type StatusBus struct {
	// deliverMu is held for the delivery of one event, or for a
	// subscribe-replay.
	deliverMu sync.Mutex

	mu          sync.Mutex
	current     StatusEvent
	subscribers []StatusSubscriber
	pending     []StatusEvent
	draining    bool

	logger logger.Logger
}

// NewStatusBus creates a bus whose current status is initial.
func NewStatusBus(initial StatusEvent, log logger.Logger) *StatusBus {
	if log == nil {
		log = logger.Nop()
	}
	return &StatusBus{current: initial, logger: log}
}

// Publish replaces the current status and notifies every subscriber.
func (b *StatusBus) Publish(code StatusCode, message string) {
	b.post(StatusEvent{Code: code, Message: message})
	b.flush()
}

// post queues ev without delivering it.
func (b *StatusBus) post(ev StatusEvent) {
	b.mu.Lock()
	b.pending = append(b.pending, ev)
	b.mu.Unlock()
}

// flush delivers queued events unless another call is already doing so.
func (b *StatusBus) flush() {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	b.mu.Unlock()

	for b.deliverNext() {
	}
}

// deliverNext makes the oldest queued event current and fans it out. It
// reports false, and ends the drain, once the queue is empty.
func (b *StatusBus) deliverNext() bool {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.Lock()
	if len(b.pending) == 0 {
		b.draining = false
		b.mu.Unlock()
		return false
	}
	ev := b.pending[0]
	b.pending = b.pending[1:]
	b.current = ev
	subs := make([]StatusSubscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	b.logger.Debug("status changed", "code", ev.Code, "message", ev.Message)
	for _, sub := range subs {
		b.deliver(sub, ev)
	}
	return true
}

// Subscribe delivers the current status to sub and registers it for
// future transitions. It must not be called from inside OnStatus.
func (b *StatusBus) Subscribe(sub StatusSubscriber) {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.Lock()
	if b.indexOf(sub) >= 0 {
		b.mu.Unlock()
		return
	}
	current := b.current
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()

	b.deliver(sub, current)
}

// Unsubscribe removes sub; it is idempotent and safe inside OnStatus.
func (b *StatusBus) Unsubscribe(sub StatusSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(sub)
	if i < 0 {
		return
	}
	b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
}

// Current returns the latest status.
func (b *StatusBus) Current() StatusEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Subscribers returns the number of registered subscribers.
func (b *StatusBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *StatusBus) indexOf(sub StatusSubscriber) int {
	for i, s := range b.subscribers {
		if s == sub {
			return i
		}
	}
	return -1
}

func (b *StatusBus) deliver(sub StatusSubscriber, ev StatusEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("status subscriber panicked", "panic", r)
		}
	}()
	sub.OnStatus(ev)
}
