package sms

import (
	"context"
	"strings"
	"time"

	"github.com/notifykit/notifykit/pkg/events"
	"github.com/notifykit/notifykit/pkg/metrics"
	"github.com/notifykit/notifykit/pkg/suppression"
)

// Carrier-mandated keywords, matched against the first word of an inbound
// message after trimming and uppercasing.
var (
	optOutKeywords = map[string]struct{}{
		"STOP": {}, "UNSUBSCRIBE": {}, "CANCEL": {}, "END": {}, "QUIT": {},
	}
	optInKeywords = map[string]struct{}{
		"START": {}, "UNSTOP": {}, "YES": {},
	}
)

// HandleInbound processes a reply received from a subscriber. Opt-out
// keywords suppress the sender's number, opt-in keywords lift the
// suppression. It reports whether the message matched a keyword; anything
// else is left for application-level handling.
func (a *Adapter) HandleInbound(ctx context.Context, from, body string) (bool, error) {
	to, err := a.normalize(from)
	if err != nil {
		return false, err
	}

	fields := strings.Fields(body)
	if len(fields) == 0 {
		return false, nil
	}
	keyword := strings.ToUpper(fields[0])

	if _, ok := optOutKeywords[keyword]; ok {
		if err := a.supp.Suppress(ctx, suppression.Entry{
			Channel: ChannelName, RecipientKey: to, Reason: suppression.ReasonUnsubscribed, At: time.Now(),
		}); err != nil {
			return true, err
		}
		_ = a.metrics.Inc(ctx, metrics.OptedOut)
		a.emitter.Emit(ctx, events.Event{
			Name: events.SMSOptOut, Channel: ChannelName,
			Payload: map[string]any{"recipient": to, "keyword": keyword},
		})
		return true, nil
	}

	if _, ok := optInKeywords[keyword]; ok {
		if err := a.supp.Remove(ctx, ChannelName, to); err != nil {
			return true, err
		}
		a.emitter.Emit(ctx, events.Event{
			Name: events.SMSOptIn, Channel: ChannelName,
			Payload: map[string]any{"recipient": to, "keyword": keyword},
		})
		return true, nil
	}

	return false, nil
}
