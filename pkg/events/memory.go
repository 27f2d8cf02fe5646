package events

import (
	"context"
	"sync"
	"time"
)

type subscriber struct {
	ch     chan Event
	closed bool
	mu     sync.Mutex

	bus *Bus
}

func (s *subscriber) Events() <-chan Event { return s.ch }

func (s *subscriber) Close() {
	if s.bus != nil {
		s.bus.unsubscribe(s)
	}
}

func (s *subscriber) closeChan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}

// send delivers non-blocking; a full buffer drops the event for that
// subscriber rather than stalling the adapter that emitted it.
func (s *subscriber) send(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

// Bus is an in-process Emitter with fan-out to bounded subscriber buffers.
// All methods are safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	bufferSize  int
	closed      bool
}

// NewBus creates an event bus. A minimum buffer size of 1 is enforced so
// sends stay non-blocking.
func NewBus(bufferSize int) *Bus {
	return &Bus{
		subscribers: make(map[*subscriber]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
}

// Subscribe registers a new observer. The subscription is cleaned up when
// the provided context is cancelled or Close is called on it.
func (b *Bus) Subscribe(ctx context.Context) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, b.bufferSize), bus: b}
	if b.closed {
		sub.closeChan()
		return sub
	}
	b.subscribers[sub] = struct{}{}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			b.unsubscribe(sub)
		}()
	}

	return sub
}

// Emit publishes the event to every active subscriber. With zero subscribers
// it is a no-op; a slow subscriber loses the event instead of blocking.
func (b *Bus) Emit(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.subscribers {
		sub.send(ev)
	}
}

// Close shuts down the bus and all subscriptions. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subscribers {
		sub.closeChan()
	}
	clear(b.subscribers)
}

func (b *Bus) unsubscribe(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, sub)
	sub.closeChan()
}
