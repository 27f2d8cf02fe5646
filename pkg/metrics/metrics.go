package metrics

import (
	"context"
	"time"
)

// Counter names one tracked delivery event.
type Counter string

const (
	Sent        Counter = "sent"
	Delivered   Counter = "delivered"
	Failed      Counter = "failed"
	Bounced     Counter = "bounced"
	SoftBounced Counter = "soft_bounced"
	Complaints  Counter = "complaints"
	Opened      Counter = "opened"
	Clicked     Counter = "clicked"
	Suppressed  Counter = "suppressed"
	RateLimited Counter = "rate_limited"
	OptedOut    Counter = "opted_out"
)

// ChannelMetrics is the read model: raw counters plus rates derived on read.
type ChannelMetrics struct {
	Channel      string            `json:"channel"`
	Counts       map[Counter]int64 `json:"counts"`
	DeliveryRate float64           `json:"delivery_rate"`
	BounceRate   float64           `json:"bounce_rate"`
	OpenRate     float64           `json:"open_rate"`
	ClickRate    float64           `json:"click_rate"`
	FailureRate  float64           `json:"failure_rate"`
	ComputedAt   time.Time         `json:"computed_at"`
}

// Store persists one counter snapshot per channel, updated on every
// state-changing event.
type Store interface {
	Inc(ctx context.Context, channel string, c Counter, delta int64) error
	All(ctx context.Context, channel string) (map[Counter]int64, error)
	Reset(ctx context.Context, channel string) error
}

// Aggregator maintains one channel's counters and computes derived rates.
type Aggregator struct {
	channel string
	store   Store
}

// NewAggregator creates an aggregator for the named channel.
func NewAggregator(channel string, store Store) *Aggregator {
	return &Aggregator{channel: channel, store: store}
}

// Inc bumps a counter by one. Store failures are deliberately the caller's
// problem to log, not to fail a delivery over.
func (a *Aggregator) Inc(ctx context.Context, c Counter) error {
	observe(a.channel, c)
	return a.store.Inc(ctx, a.channel, c, 1)
}

// Add bumps a counter by delta.
func (a *Aggregator) Add(ctx context.Context, c Counter, delta int64) error {
	observeN(a.channel, c, delta)
	return a.store.Inc(ctx, a.channel, c, delta)
}

// Snapshot reads the persisted counters and recomputes the derived rates.
func (a *Aggregator) Snapshot(ctx context.Context) (*ChannelMetrics, error) {
	counts, err := a.store.All(ctx, a.channel)
	if err != nil {
		return nil, err
	}

	m := &ChannelMetrics{
		Channel:    a.channel,
		Counts:     counts,
		ComputedAt: time.Now(),
	}
	if sent := counts[Sent]; sent > 0 {
		m.DeliveryRate = float64(counts[Delivered]) / float64(sent)
		m.BounceRate = float64(counts[Bounced]) / float64(sent)
		m.FailureRate = float64(counts[Failed]) / float64(sent)
	}
	if delivered := counts[Delivered]; delivered > 0 {
		m.OpenRate = float64(counts[Opened]) / float64(delivered)
		m.ClickRate = float64(counts[Clicked]) / float64(delivered)
	}
	return m, nil
}

// Reset clears the channel's counters.
func (a *Aggregator) Reset(ctx context.Context) error {
	return a.store.Reset(ctx, a.channel)
}
