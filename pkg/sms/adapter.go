package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/notifykit/notifykit/pkg/directory"
	"github.com/notifykit/notifykit/pkg/events"
	"github.com/notifykit/notifykit/pkg/logger"
	"github.com/notifykit/notifykit/pkg/metrics"
	"github.com/notifykit/notifykit/pkg/notification"
	"github.com/notifykit/notifykit/pkg/ratelimit"
	"github.com/notifykit/notifykit/pkg/suppression"
	"github.com/notifykit/notifykit/pkg/templates"
)

// ChannelName identifies this adapter in results, metrics and suppression keys.
const ChannelName = "sms"

const complianceFooter = "Reply STOP to unsubscribe"

// Adapter implements the common channel contract for SMS.
type Adapter struct {
	mu     sync.RWMutex
	config Config

	sender    Sender
	dir       directory.Directory
	renderer  templates.Renderer
	supp      suppression.Store
	rlStore   ratelimit.Store
	global    *ratelimit.Limiter
	recipient *ratelimit.Limiter
	metrics   *metrics.Aggregator
	records   notification.RecordStore
	emitter   events.Emitter
	logger    *slog.Logger
	phones    *phoneCache
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithDirectory sets the recipient directory used when metadata carries no
// phone number override.
func WithDirectory(d directory.Directory) Option {
	return func(a *Adapter) { a.dir = d }
}

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

// WithRateLimitStore sets the counter backend for all rate windows.
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

// New creates the SMS adapter. Configuration problems fail here, fatally:
// no adapter comes up in a partially configured state.
func New(cfg Config, sender Sender, opts ...Option) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, fmt.Errorf("%w: sender is required", ErrInvalidConfig)
	}

	a := &Adapter{
		config:  cfg,
		sender:  sender,
		supp:    suppression.NewMemoryStore(),
		rlStore: ratelimit.NewMemoryStore(),
		metrics: metrics.NewAggregator(ChannelName, metrics.NewMemoryStore()),
		emitter: events.Nop{},
		logger:  slog.Default(),
		phones:  newPhoneCache(cfg.PhoneCacheSize),
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
		{Name: "1h", Interval: time.Hour, Limit: a.config.RatePerHour},
		{Name: "24h", Interval: 24 * time.Hour, Limit: a.config.RatePerDay},
	})
	if err != nil {
		return err
	}
	recipient, err := ratelimit.NewLimiter(a.rlStore, []ratelimit.Window{
		{Name: "24h", Interval: 24 * time.Hour, Limit: a.config.RecipientDailyLimit},
	})
	if err != nil {
		return err
	}
	a.global = global
	a.recipient = recipient
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

// Send implements notification.Channel. SMS delivers to a single number, so
// the slice always holds exactly one result.
func (a *Adapter) Send(ctx context.Context, n notification.Notification, opts *notification.SendOptions) ([]notification.DeliveryResult, error) {
	res := a.sendOne(ctx, n, opts)
	return []notification.DeliveryResult{res}, nil
}

// SendBulk implements notification.Channel.
func (a *Adapter) SendBulk(ctx context.Context, ns []notification.Notification, opts notification.BulkOptions) ([]notification.DeliveryResult, error) {
	return notification.Bulk(ctx, ns, opts, func(ctx context.Context, n notification.Notification) notification.DeliveryResult {
		return a.sendOne(ctx, n, nil)
	}), nil
}

// Metrics implements notification.Channel.
func (a *Adapter) Metrics(ctx context.Context) (*metrics.ChannelMetrics, error) {
	return a.metrics.Snapshot(ctx)
}

func (a *Adapter) sendOne(ctx context.Context, n notification.Notification, opts *notification.SendOptions) notification.DeliveryResult {
	cfg := a.cfg()

	if n.IsExpired() {
		return a.fail(ctx, n, "", &notification.DeliveryError{
			Code: notification.CodeExpired, Message: "notification expired before send", Permanent: true,
		})
	}

	// Rate limits fail fast: no partial send, no transport call.
	if res := a.checkLimit(ctx, a.global, "sms:global"); res != nil {
		return a.fail(ctx, n, "", res)
	}

	to, derr := a.resolveNumber(ctx, n)
	if derr != nil {
		return a.fail(ctx, n, "", derr)
	}

	if res := a.checkLimit(ctx, a.recipient, "sms:rcpt:"+to); res != nil {
		return a.fail(ctx, n, to, res)
	}

	if blocked, reason, err := a.supp.IsSuppressed(ctx, ChannelName, to); err != nil {
		return a.fail(ctx, n, to, &notification.DeliveryError{
			Code: notification.CodeTransportError, Message: "suppression check failed: " + err.Error(), Retryable: true,
		})
	} else if blocked {
		_ = a.metrics.Inc(ctx, metrics.Suppressed)
		return a.fail(ctx, n, to, notification.Suppressed(string(reason)))
	}

	body, derr := a.prepare(ctx, cfg, n, to, opts)
	if derr != nil {
		return a.fail(ctx, n, to, derr)
	}
	encoding, segments := calculateSegments(body)

	_ = a.metrics.Inc(ctx, metrics.Sent)

	sendCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	defer cancel()

	messageID, err := a.sender.Send(sendCtx, Message{To: to, Body: body})
	if err != nil {
		return a.transportFailure(ctx, n, to, sendCtx, err)
	}

	res := notification.DeliveryResult{
		Success:           true,
		Channel:           ChannelName,
		NotificationID:    n.ID,
		Recipient:         to,
		Timestamp:         time.Now(),
		Attempts:          1,
		ProviderMessageID: messageID,
		Segments:          segments,
		Encoding:          string(encoding),
	}
	_ = a.metrics.Inc(ctx, metrics.Delivered)
	a.record(ctx, res)
	a.emitter.Emit(ctx, events.Event{
		Name: events.DeliverySent, Channel: ChannelName,
		Payload: map[string]any{"notification_id": n.ID, "recipient": to, "segments": segments},
	})
	return res
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

// normalize canonicalizes a raw number through the memoization cache.
func (a *Adapter) normalize(raw string) (string, error) {
	if e164, ok := a.phones.get(raw); ok {
		return e164, nil
	}
	e164, err := normalizePhone(raw, a.cfg().DefaultCountryCode)
	if err != nil {
		return "", err
	}
	a.phones.put(raw, e164)
	return e164, nil
}

func (a *Adapter) resolveNumber(ctx context.Context, n notification.Notification) (string, *notification.DeliveryError) {
	raw := n.Metadata.PhoneNumber()
	if raw == "" {
		if a.dir == nil {
			return "", &notification.DeliveryError{
				Code: notification.CodeNoRecipient, Message: "no phone number and no directory configured", Permanent: true,
			}
		}
		addr, err := a.dir.ResolveAddress(ctx, n.UserID, ChannelName)
		if err != nil {
			return "", &notification.DeliveryError{
				Code: notification.CodeNoRecipient, Message: "no phone number for user " + n.UserID, Permanent: true,
			}
		}
		raw = addr
	}

	to, err := a.normalize(raw)
	if err != nil {
		return "", &notification.DeliveryError{
			Code: notification.CodeInvalidRecipient, Message: err.Error(), Permanent: true,
		}
	}
	return to, nil
}

// prepare assembles the final message body: rendered or raw text, then the
// compliance footer, then the signature. The signature is always last.
func (a *Adapter) prepare(ctx context.Context, cfg Config, n notification.Notification, to string, opts *notification.SendOptions) (string, *notification.DeliveryError) {
	body := n.Message

	templateID := n.Metadata.TemplateID()
	skipTemplate := opts != nil && opts.SkipTemplate
	if templateID != "" && !skipTemplate && a.renderer != nil {
		rendered, err := a.renderer.Render(ctx, templateID, templates.PersonalizationContext{
			User:    templates.RenderUser{ID: n.UserID, Phone: to},
			Context: templates.RenderEnv{Timestamp: time.Now()},
			Data:    n.Metadata,
		}, ChannelName)
		if err != nil {
			return "", &notification.DeliveryError{
				Code: notification.CodeTemplateError, Message: "template render failed: " + err.Error(),
			}
		}
		if rendered.Body != "" {
			body = rendered.Body
		}
	}

	if cfg.ComplianceFooter && !mentionsOptOut(body) {
		body += "\n\n" + complianceFooter
	}
	if cfg.Signature != "" {
		body += "\n" + cfg.Signature
	}
	return body, nil
}

// mentionsOptOut reports whether the body already tells the recipient how to
// opt out, making the standard footer redundant.
func mentionsOptOut(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "stop") || strings.Contains(lower, "unsubscribe")
}

func (a *Adapter) transportFailure(ctx context.Context, n notification.Notification, to string, sendCtx context.Context, err error) notification.DeliveryResult {
	var derr *notification.DeliveryError
	var perr *ProviderError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || sendCtx.Err() == context.DeadlineExceeded:
		derr = notification.Timeout("sms send timed out")
	case errors.As(err, &perr):
		derr = &notification.DeliveryError{
			Code: notification.CodeProviderRejected, Message: err.Error(), Permanent: true,
		}
	default:
		derr = &notification.DeliveryError{
			Code: notification.CodeTransportError, Message: err.Error(), Retryable: true,
		}
	}

	_ = a.metrics.Inc(ctx, metrics.Failed)
	res := notification.Failure(ChannelName, n, derr)
	res.Recipient = to
	a.record(ctx, res)
	a.emitter.Emit(ctx, events.Event{
		Name: events.DeliveryFailed, Channel: ChannelName,
		Payload: map[string]any{"notification_id": n.ID, "recipient": to, "code": string(derr.Code)},
	})
	a.logger.LogAttrs(ctx, slog.LevelWarn, "sms delivery failed",
		logger.NotificationID(n.ID), logger.Recipient(to),
		logger.Provider(a.sender.Name()), logger.Error(err))
	return res
}

func (a *Adapter) fail(ctx context.Context, n notification.Notification, to string, derr *notification.DeliveryError) notification.DeliveryResult {
	res := notification.Failure(ChannelName, n, derr)
	res.Recipient = to
	a.record(ctx, res)
	return res
}

func (a *Adapter) record(ctx context.Context, res notification.DeliveryResult) {
	if err := a.records.Save(ctx, notification.RecordFromResult(res)); err != nil {
		a.logger.LogAttrs(ctx, slog.LevelWarn, "failed to save delivery record",
			logger.NotificationID(res.NotificationID), logger.Error(err))
	}
}
