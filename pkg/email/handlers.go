package email

import (
	"context"
	"time"

	"github.com/notifykit/notifykit/pkg/events"
	"github.com/notifykit/notifykit/pkg/metrics"
	"github.com/notifykit/notifykit/pkg/suppression"
)

// Bounce is the provider's bounce notification fed back into the adapter.
type Bounce struct {
	Recipient string
	Permanent bool
	Code      string
	At        time.Time
}

// HandleBounce processes a bounce report. Hard bounces permanently block the
// recipient; soft bounces are recorded but do not suppress.
func (a *Adapter) HandleBounce(ctx context.Context, b Bounce) error {
	if !b.Permanent {
		_ = a.metrics.Inc(ctx, metrics.SoftBounced)
		a.emitter.Emit(ctx, events.Event{
			Name: events.EmailBounce, Channel: ChannelName,
			Payload: map[string]any{"recipient": b.Recipient, "permanent": false, "code": b.Code},
		})
		return nil
	}

	if err := a.supp.Suppress(ctx, suppression.Entry{
		Channel: ChannelName, RecipientKey: b.Recipient, Reason: suppression.ReasonHardBounce, At: b.At,
	}); err != nil {
		return err
	}
	_ = a.metrics.Inc(ctx, metrics.Bounced)
	a.emitter.Emit(ctx, events.Event{
		Name: events.EmailBounce, Channel: ChannelName,
		Payload: map[string]any{"recipient": b.Recipient, "permanent": true, "code": b.Code},
	})
	return nil
}

// HandleComplaint processes a spam complaint: the recipient is permanently
// blocked and the complaint counted.
func (a *Adapter) HandleComplaint(ctx context.Context, recipient string) error {
	if err := a.supp.Suppress(ctx, suppression.Entry{
		Channel: ChannelName, RecipientKey: recipient, Reason: suppression.ReasonComplaint, At: time.Now(),
	}); err != nil {
		return err
	}
	_ = a.metrics.Inc(ctx, metrics.Complaints)
	a.emitter.Emit(ctx, events.Event{
		Name: events.EmailComplaint, Channel: ChannelName,
		Payload: map[string]any{"recipient": recipient},
	})
	return nil
}

// HandleOpen records an open-pixel hit. The tracking endpoint serving
// /t/open/{notificationID} feeds it back here so the open rate moves.
func (a *Adapter) HandleOpen(ctx context.Context, notificationID, recipient string) error {
	if err := a.metrics.Inc(ctx, metrics.Opened); err != nil {
		return err
	}
	a.emitter.Emit(ctx, events.Event{
		Name: events.EmailOpen, Channel: ChannelName,
		Payload: map[string]any{"notification_id": notificationID, "recipient": recipient},
	})
	return nil
}

// HandleClick records a tracked-link click reported by the redirect endpoint.
func (a *Adapter) HandleClick(ctx context.Context, notificationID, url string) error {
	if err := a.metrics.Inc(ctx, metrics.Clicked); err != nil {
		return err
	}
	a.emitter.Emit(ctx, events.Event{
		Name: events.EmailClick, Channel: ChannelName,
		Payload: map[string]any{"notification_id": notificationID, "url": url},
	})
	return nil
}

// HandleOptOut records an unsubscribe.
func (a *Adapter) HandleOptOut(ctx context.Context, recipient string) error {
	if err := a.supp.Suppress(ctx, suppression.Entry{
		Channel: ChannelName, RecipientKey: recipient, Reason: suppression.ReasonUnsubscribed, At: time.Now(),
	}); err != nil {
		return err
	}
	_ = a.metrics.Inc(ctx, metrics.OptedOut)
	a.emitter.Emit(ctx, events.Event{
		Name: events.EmailOptOut, Channel: ChannelName,
		Payload: map[string]any{"recipient": recipient},
	})
	return nil
}

// HandleOptIn removes the recipient's suppression entry. It is the only
// path that makes a suppressed recipient sendable again.
func (a *Adapter) HandleOptIn(ctx context.Context, recipient string) error {
	if err := a.supp.Remove(ctx, ChannelName, recipient); err != nil {
		return err
	}
	a.emitter.Emit(ctx, events.Event{
		Name: events.EmailOptIn, Channel: ChannelName,
		Payload: map[string]any{"recipient": recipient},
	})
	return nil
}
