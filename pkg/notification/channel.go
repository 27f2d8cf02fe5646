package notification

import (
	"context"

	"github.com/notifykit/notifykit/pkg/metrics"
)

// SendOptions tunes a single send. The zero value applies defaults.
type SendOptions struct {
	// SkipTemplate disables template rendering even when metadata carries
	// a template reference.
	SkipTemplate bool
}

// Channel is the contract every adapter implements. A failed item is
// reported inside its DeliveryResult; methods return an error only for
// contract misuse (nil receiver state, calls before initialization).
type Channel interface {
	// Name returns the channel identifier (email, sms, push, inapp).
	Name() string

	// Send delivers one notification. Adapters that fan out to several
	// recipient addresses or tokens return one result per attempt.
	Send(ctx context.Context, n Notification, opts *SendOptions) ([]DeliveryResult, error)

	// SendBulk delivers many notifications in fixed-size concurrent batches,
	// returning exactly one aggregated result per input in input order.
	SendBulk(ctx context.Context, ns []Notification, opts BulkOptions) ([]DeliveryResult, error)

	// Metrics returns the channel's counters with derived rates.
	Metrics(ctx context.Context) (*metrics.ChannelMetrics, error)
}
