package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/notifykit/notifykit/pkg/events"
	"github.com/notifykit/notifykit/pkg/logger"
	"github.com/notifykit/notifykit/pkg/metrics"
	"github.com/notifykit/notifykit/pkg/notification"
	"github.com/notifykit/notifykit/pkg/ratelimit"
	"github.com/notifykit/notifykit/pkg/suppression"
	"github.com/notifykit/notifykit/pkg/templates"
	"github.com/notifykit/notifykit/pkg/tokens"
)

// ChannelName identifies this adapter in results, metrics and suppression keys.
const ChannelName = "push"

// defaultBatchSize bounds provider calls when Config.BatchSize is zero.
const defaultBatchSize = 500

// Adapter implements the common channel contract for push. One notification
// fans out to every enabled device token of the target user, producing one
// result per token.
type Adapter struct {
	mu     sync.RWMutex
	config Config

	sender   Sender
	registry *tokens.Registry
	renderer templates.Renderer
	supp     suppression.Store
	rlStore  ratelimit.Store
	global   *ratelimit.Limiter
	user     *ratelimit.Limiter
	metrics  *metrics.Aggregator
	records  notification.RecordStore
	emitter  events.Emitter
	logger   *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRenderer sets the template renderer.
func WithRenderer(r templates.Renderer) Option {
	return func(a *Adapter) { a.renderer = r }
}

// WithSuppressionStore sets the suppression store. Defaults to an in-memory store.
func WithSuppressionStore(s suppression.Store) Option {
	return func(a *Adapter) {
		if s != nil {
			a.supp = s
		}
	}
}

// WithRateLimitStore sets the counter backend for both rate windows.
// Defaults to an in-memory store.
func WithRateLimitStore(s ratelimit.Store) Option {
	return func(a *Adapter) {
		if s != nil {
			a.rlStore = s
		}
	}
}

// WithMetricsStore sets the metrics snapshot backend. Defaults to memory.
func WithMetricsStore(s metrics.Store) Option {
	return func(a *Adapter) {
		if s != nil {
			a.metrics = metrics.NewAggregator(ChannelName, s)
		}
	}
}

// WithRecordStore sets the delivery-record store. Defaults to memory with
// the configured retention TTL.
func WithRecordStore(s notification.RecordStore) Option {
	return func(a *Adapter) {
		if s != nil {
			a.records = s
		}
	}
}

// WithEmitter sets the event emitter.
func WithEmitter(e events.Emitter) Option {
	return func(a *Adapter) {
		if e != nil {
			a.emitter = e
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates the push adapter. The token registry is mandatory: without it
// there is nothing to fan out to.
func New(cfg Config, sender Sender, registry *tokens.Registry, opts ...Option) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, fmt.Errorf("%w: sender is required", ErrInvalidConfig)
	}
	if registry == nil {
		return nil, fmt.Errorf("%w: token registry is required", ErrInvalidConfig)
	}

	a := &Adapter{
		config:   cfg,
		sender:   sender,
		registry: registry,
		supp:     suppression.NewMemoryStore(),
		rlStore:  ratelimit.NewMemoryStore(),
		metrics:  metrics.NewAggregator(ChannelName, metrics.NewMemoryStore()),
		emitter:  events.Nop{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.records == nil {
		a.records = notification.NewMemoryRecordStore(cfg.RecordTTL)
	}
	if err := a.buildLimiters(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Adapter) buildLimiters() error {
	global, err := ratelimit.NewLimiter(a.rlStore, []ratelimit.Window{
		{Name: "1m", Interval: time.Minute, Limit: a.config.RatePerMinute},
	})
	if err != nil {
		return err
	}
	user, err := ratelimit.NewLimiter(a.rlStore, []ratelimit.Window{
		{Name: "24h", Interval: 24 * time.Hour, Limit: a.config.UserDailyLimit},
	})
	if err != nil {
		return err
	}
	a.global = global
	a.user = user
	return nil
}

// Reconfigure replaces the adapter configuration. It is the only supported
// mutation path after construction.
func (a *Adapter) Reconfigure(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config = cfg
	return a.buildLimiters()
}

func (a *Adapter) cfg() Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// Name implements notification.Channel.
func (a *Adapter) Name() string { return ChannelName }

// Send implements notification.Channel. The result slice holds one entry
// per device token the notification fanned out to, or a single entry when
// delivery failed before fan-out.
func (a *Adapter) Send(ctx context.Context, n notification.Notification, opts *notification.SendOptions) ([]notification.DeliveryResult, error) {
	return a.sendOne(ctx, n, opts), nil
}

// SendBulk implements notification.Channel: exactly one result per input,
// in input order. Each notification's token fan-out is folded into a single
// result whose Accepted and Rejected slices carry the per-token detail;
// Send remains the per-token surface.
func (a *Adapter) SendBulk(ctx context.Context, ns []notification.Notification, opts notification.BulkOptions) ([]notification.DeliveryResult, error) {
	return notification.Bulk(ctx, ns, opts, func(ctx context.Context, n notification.Notification) notification.DeliveryResult {
		return aggregate(n, a.sendOne(ctx, n, nil))
	}), nil
}

// SendMulticast delivers one notification to many users, reusing the
// per-user pipeline (limits, suppression, token fan-out) for each target.
// One aggregated result per user, in input order.
func (a *Adapter) SendMulticast(ctx context.Context, userIDs []string, n notification.Notification, opts notification.BulkOptions) ([]notification.DeliveryResult, error) {
	items := make([]notification.Notification, len(userIDs))
	for i, uid := range userIDs {
		item := n
		item.UserID = uid
		items[i] = item
	}
	return notification.Bulk(ctx, items, opts, func(ctx context.Context, n notification.Notification) notification.DeliveryResult {
		return aggregate(n, a.sendOne(ctx, n, nil))
	}), nil
}

// aggregate folds a notification's per-token results into one result.
// Delivery counts as successful when any token was delivered. A single
// pre-fan-out failure (expired, rate limited, suppressed, no tokens)
// passes through unchanged.
func aggregate(n notification.Notification, results []notification.DeliveryResult) notification.DeliveryResult {
	if len(results) == 1 && results[0].Recipient == "" {
		return results[0]
	}

	agg := notification.DeliveryResult{
		Channel:        ChannelName,
		NotificationID: n.ID,
		Recipient:      n.UserID,
		Timestamp:      time.Now(),
		Attempts:       1,
	}
	for _, res := range results {
		if res.Success {
			agg.Success = true
			agg.Accepted = append(agg.Accepted, res.Recipient)
			if agg.ProviderMessageID == "" {
				agg.ProviderMessageID = res.ProviderMessageID
			}
			continue
		}
		agg.Rejected = append(agg.Rejected, res.Recipient)
		if agg.Error == nil {
			agg.Error = res.Error
		}
	}
	if agg.Success {
		agg.Error = nil
	}
	return agg
}

// Metrics implements notification.Channel.
func (a *Adapter) Metrics(ctx context.Context) (*metrics.ChannelMetrics, error) {
	return a.metrics.Snapshot(ctx)
}

func (a *Adapter) sendOne(ctx context.Context, n notification.Notification, opts *notification.SendOptions) []notification.DeliveryResult {
	cfg := a.cfg()

	if n.IsExpired() {
		return a.failAll(ctx, n, &notification.DeliveryError{
			Code: notification.CodeExpired, Message: "notification expired before send", Permanent: true,
		})
	}

	if res := a.checkLimit(ctx, a.global, "push:global"); res != nil {
		return a.failAll(ctx, n, res)
	}
	if res := a.checkLimit(ctx, a.user, "push:user:"+n.UserID); res != nil {
		return a.failAll(ctx, n, res)
	}

	if blocked, reason, err := a.supp.IsSuppressed(ctx, ChannelName, n.UserID); err != nil {
		return a.failAll(ctx, n, &notification.DeliveryError{
			Code: notification.CodeTransportError, Message: "suppression check failed: " + err.Error(), Retryable: true,
		})
	} else if blocked {
		_ = a.metrics.Inc(ctx, metrics.Suppressed)
		return a.failAll(ctx, n, notification.Suppressed(string(reason)))
	}

	devices, err := a.registry.TokensForUser(ctx, n.UserID)
	if err != nil {
		return a.failAll(ctx, n, &notification.DeliveryError{
			Code: notification.CodeTransportError, Message: "token lookup failed: " + err.Error(), Retryable: true,
		})
	}
	if len(devices) == 0 {
		return a.failAll(ctx, n, &notification.DeliveryError{
			Code: notification.CodeNoRecipient, Message: "no enabled push tokens for user " + n.UserID, Permanent: true,
		})
	}

	payload, derr := a.preparePayload(ctx, cfg, n, opts)
	if derr != nil {
		return a.failAll(ctx, n, derr)
	}

	// Providers take homogeneous batches, so fan out per platform.
	byPlatform := make(map[tokens.Platform][]string)
	for _, d := range devices {
		byPlatform[d.Platform] = append(byPlatform[d.Platform], d.Token)
	}

	_ = a.metrics.Add(ctx, metrics.Sent, int64(len(devices)))

	sendCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	defer cancel()

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var results []notification.DeliveryResult
	for platform, tokenValues := range byPlatform {
		for start := 0; start < len(tokenValues); start += batchSize {
			end := min(start+batchSize, len(tokenValues))
			results = append(results, a.sendBatch(ctx, sendCtx, n, *payload, platform, tokenValues[start:end])...)
		}
	}
	return results
}

// sendBatch delivers one platform's token batch and classifies each token
// outcome, feeding the token registry's lifecycle as it goes.
func (a *Adapter) sendBatch(ctx, sendCtx context.Context, n notification.Notification, payload Payload, platform tokens.Platform, tokenValues []string) []notification.DeliveryResult {
	batch, err := a.sender.Send(sendCtx, platform, tokenValues, payload)
	if err != nil {
		derr := &notification.DeliveryError{
			Code: notification.CodeTransportError, Message: err.Error(), Retryable: true,
		}
		if errors.Is(err, context.DeadlineExceeded) || sendCtx.Err() == context.DeadlineExceeded {
			derr = notification.Timeout("push send timed out")
		}
		results := make([]notification.DeliveryResult, 0, len(tokenValues))
		for _, t := range tokenValues {
			results = append(results, a.tokenFailure(ctx, n, platform, t, derr))
		}
		a.logger.LogAttrs(ctx, slog.LevelWarn, "push batch failed",
			logger.NotificationID(n.ID), slog.String("platform", string(platform)),
			logger.Provider(a.sender.Name()), logger.Error(err))
		return results
	}

	results := make([]notification.DeliveryResult, 0, len(batch))
	for _, tr := range batch {
		switch {
		case tr.Err == nil:
			if err := a.registry.RecordSuccess(ctx, tr.Token); err != nil {
				a.logger.LogAttrs(ctx, slog.LevelWarn, "failed to record token success",
					logger.Error(err))
			}
			res := notification.DeliveryResult{
				Success:           true,
				Channel:           ChannelName,
				NotificationID:    n.ID,
				Recipient:         tr.Token,
				Timestamp:         time.Now(),
				Attempts:          1,
				ProviderMessageID: tr.MessageID,
				Platform:          string(platform),
			}
			_ = a.metrics.Inc(ctx, metrics.Delivered)
			a.record(ctx, res)
			a.emitter.Emit(ctx, events.Event{
				Name: events.DeliverySent, Channel: ChannelName,
				Payload: map[string]any{"notification_id": n.ID, "platform": string(platform)},
			})
			results = append(results, res)

		case tr.ShouldRemove:
			if _, err := a.registry.RecordFailure(ctx, tr.Token, tr.Err.Error(), true); err != nil {
				a.logger.LogAttrs(ctx, slog.LevelWarn, "failed to disable dead token",
					logger.Error(err))
			}
			results = append(results, a.tokenFailure(ctx, n, platform, tr.Token, &notification.DeliveryError{
				Code: notification.CodeProviderRejected, Message: tr.Err.Error(), Permanent: true,
			}))

		default:
			if _, err := a.registry.RecordFailure(ctx, tr.Token, tr.Err.Error(), false); err != nil {
				a.logger.LogAttrs(ctx, slog.LevelWarn, "failed to record token failure",
					logger.Error(err))
			}
			results = append(results, a.tokenFailure(ctx, n, platform, tr.Token, &notification.DeliveryError{
				Code: notification.CodeTransportError, Message: tr.Err.Error(), Retryable: true,
			}))
		}
	}
	return results
}

func (a *Adapter) checkLimit(ctx context.Context, l *ratelimit.Limiter, scope string) *notification.DeliveryError {
	res, err := l.Allow(ctx, scope)
	if err != nil {
		a.logger.LogAttrs(ctx, slog.LevelWarn, "rate limit check failed",
			logger.Channel(ChannelName), logger.Error(err))
		return &notification.DeliveryError{
			Code: notification.CodeTransportError, Message: "rate limit check failed: " + err.Error(), Retryable: true,
		}
	}
	if !res.Allowed {
		_ = a.metrics.Inc(ctx, metrics.RateLimited)
		return notification.RateLimited(fmt.Sprintf("window %s over limit %d, retry in %s",
			res.Window, res.Limit, res.RetryAfter().Round(time.Millisecond)))
	}
	return nil
}

func (a *Adapter) preparePayload(ctx context.Context, cfg Config, n notification.Notification, opts *notification.SendOptions) (*Payload, *notification.DeliveryError) {
	title := n.Title
	body := n.Message

	templateID := n.Metadata.TemplateID()
	skipTemplate := opts != nil && opts.SkipTemplate
	if templateID != "" && !skipTemplate && a.renderer != nil {
		rendered, err := a.renderer.Render(ctx, templateID, templates.PersonalizationContext{
			User:    templates.RenderUser{ID: n.UserID},
			Context: templates.RenderEnv{Timestamp: time.Now()},
			Data:    n.Metadata,
		}, ChannelName)
		if err != nil {
			return nil, &notification.DeliveryError{
				Code: notification.CodeTemplateError, Message: "template render failed: " + err.Error(),
			}
		}
		if rendered.Title != "" {
			title = rendered.Title
		}
		if rendered.Body != "" {
			body = rendered.Body
		}
	}

	payload := buildPayload(n, title, body, cfg.DefaultSound)
	return &payload, nil
}

func (a *Adapter) tokenFailure(ctx context.Context, n notification.Notification, platform tokens.Platform, token string, derr *notification.DeliveryError) notification.DeliveryResult {
	_ = a.metrics.Inc(ctx, metrics.Failed)
	res := notification.Failure(ChannelName, n, derr)
	res.Recipient = token
	res.Platform = string(platform)
	a.record(ctx, res)
	a.emitter.Emit(ctx, events.Event{
		Name: events.DeliveryFailed, Channel: ChannelName,
		Payload: map[string]any{"notification_id": n.ID, "platform": string(platform), "code": string(derr.Code)},
	})
	return res
}

// failAll produces the single pre-fan-out failure result.
func (a *Adapter) failAll(ctx context.Context, n notification.Notification, derr *notification.DeliveryError) []notification.DeliveryResult {
	res := notification.Failure(ChannelName, n, derr)
	a.record(ctx, res)
	return []notification.DeliveryResult{res}
}

func (a *Adapter) record(ctx context.Context, res notification.DeliveryResult) {
	if err := a.records.Save(ctx, notification.RecordFromResult(res)); err != nil {
		a.logger.LogAttrs(ctx, slog.LevelWarn, "failed to save delivery record",
			logger.NotificationID(res.NotificationID), logger.Error(err))
	}
}
