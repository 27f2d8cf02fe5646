package events

import (
	"context"
	"time"
)

// Canonical event names emitted by the channel adapters.
const (
	EmailBounce     = "email.bounce"
	EmailComplaint  = "email.complaint"
	EmailOpen       = "email.open"
	EmailClick      = "email.click"
	EmailOptOut     = "email.opt_out"
	EmailOptIn      = "email.opt_in"
	SMSOptOut       = "sms.opt_out"
	SMSOptIn        = "sms.opt_in"
	TokenRegistered = "push.token_registered"
	TokenDisabled   = "push.token_disabled"
	InAppRead       = "inapp.read"
	InAppDismissed  = "inapp.dismissed"
	DeliverySent    = "delivery.sent"
	DeliveryFailed  = "delivery.failed"
)

// Event is a channel-level fact external observers may subscribe to.
type Event struct {
	Name    string         `json:"name"`
	Channel string         `json:"channel"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Emitter publishes events to whoever is listening. Implementations must be
// correct with zero subscribers and must never block the send path.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// Subscription receives events from an emitter.
type Subscription interface {
	// Events returns the receive channel. It is closed when the subscription
	// or the emitter is closed.
	Events() <-chan Event

	// Close cancels the subscription. Idempotent.
	Close()
}

// Nop is an Emitter that discards everything. It is the default for adapters
// constructed without an emitter.
type Nop struct{}

func (Nop) Emit(ctx context.Context, ev Event) {}
