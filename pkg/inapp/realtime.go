package inapp

import (
	"context"
	"errors"
	"sync"
)

// ErrUserNotConnected indicates a realtime emit had no live connection to
// deliver to.
var ErrUserNotConnected = errors.New("user has no realtime connection")

// Realtime pushes items to live client connections. Implementations must
// never block the send path; a slow consumer loses messages rather than
// stalling delivery.
type Realtime interface {
	IsUserConnected(ctx context.Context, userID string) bool
	EmitToUser(ctx context.Context, userID string, item Item) error
}

const defaultSubscriberBuffer = 16

// Hub is the in-process Realtime implementation: per-user subscriber sets
// with buffered, drop-on-full delivery. Transport layers (websocket, SSE)
// attach by subscribing and forwarding the channel.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*HubSubscription]struct{}
	buffer int
	closed bool
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithSubscriberBuffer sets the per-subscription channel capacity.
func WithSubscriberBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:   make(map[string]map[*HubSubscription]struct{}),
		buffer: defaultSubscriberBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HubSubscription is one live client connection's receive side.
type HubSubscription struct {
	hub    *Hub
	userID string
	ch     chan Item
	once   sync.Once
}

// Items returns the receive channel. It is closed when the subscription or
// the hub is closed.
func (s *HubSubscription) Items() <-chan Item { return s.ch }

// Close detaches the subscription. Idempotent.
func (s *HubSubscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		if set, ok := s.hub.subs[s.userID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.hub.subs, s.userID)
			}
		}
		close(s.ch)
	})
}

// Subscribe attaches a new connection for the user. Returns nil after the
// hub is closed.
func (h *Hub) Subscribe(userID string) *HubSubscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	sub := &HubSubscription{hub: h, userID: userID, ch: make(chan Item, h.buffer)}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*HubSubscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	return sub
}

// IsUserConnected implements Realtime.
func (h *Hub) IsUserConnected(ctx context.Context, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID]) > 0
}

// EmitToUser implements Realtime. Delivery is best-effort per subscriber; a
// full buffer drops the item for that subscriber only. The emit succeeds if
// at least one subscriber received it.
func (h *Hub) EmitToUser(ctx context.Context, userID string, item Item) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.subs[userID]
	if len(set) == 0 {
		return ErrUserNotConnected
	}
	delivered := 0
	for sub := range set {
		select {
		case sub.ch <- item:
			delivered++
		default:
		}
	}
	if delivered == 0 {
		return ErrUserNotConnected
	}
	return nil
}

// Close detaches every subscription. Idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for userID, set := range h.subs {
		for sub := range set {
			sub.once.Do(func() { close(sub.ch) })
		}
		delete(h.subs, userID)
	}
}
