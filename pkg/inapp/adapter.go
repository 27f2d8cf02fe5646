package inapp

import (
	"context"
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
)

// ChannelName identifies this adapter in results, metrics and suppression keys.
const ChannelName = "inapp"

// Adapter implements the common channel contract for in-app notifications
// plus the feed read-side API clients poll. Delivery is realtime-first:
// a live connection gets the item pushed immediately, and persistence is
// skipped only when that push succeeded and ForcePersistence is off.
type Adapter struct {
	mu     sync.RWMutex
	config Config

	storage  Storage
	realtime Realtime
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

// WithStorage sets the feed storage. Defaults to in-memory storage capped
// at the configured per-user maximum.
func WithStorage(s Storage) Option {
	return func(a *Adapter) {
		if s != nil {
			a.storage = s
		}
	}
}

// WithRealtime sets the live-connection transport. Without one, every
// notification goes straight to storage.
func WithRealtime(r Realtime) Option {
	return func(a *Adapter) { a.realtime = r }
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

// New creates the in-app adapter.
func New(cfg Config, opts ...Option) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	a := &Adapter{
		config:  cfg,
		supp:    suppression.NewMemoryStore(),
		rlStore: ratelimit.NewMemoryStore(),
		metrics: metrics.NewAggregator(ChannelName, metrics.NewMemoryStore()),
		emitter: events.Nop{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.storage == nil {
		a.storage = NewMemoryStorage(cfg.MaxNotificationsPerUser)
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
		{Name: "1h", Interval: time.Hour, Limit: a.config.UserHourlyLimit},
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

// Send implements notification.Channel. In-app delivers to a single user
// feed, so the slice always holds exactly one result.
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
		return a.fail(ctx, n, &notification.DeliveryError{
			Code: notification.CodeExpired, Message: "notification expired before send", Permanent: true,
		})
	}

	if res := a.checkLimit(ctx, a.global, "inapp:global"); res != nil {
		return a.fail(ctx, n, res)
	}
	if res := a.checkLimit(ctx, a.user, "inapp:user:"+n.UserID); res != nil {
		return a.fail(ctx, n, res)
	}

	if blocked, reason, err := a.supp.IsSuppressed(ctx, ChannelName, n.UserID); err != nil {
		return a.fail(ctx, n, &notification.DeliveryError{
			Code: notification.CodeTransportError, Message: "suppression check failed: " + err.Error(), Retryable: true,
		})
	} else if blocked {
		_ = a.metrics.Inc(ctx, metrics.Suppressed)
		return a.fail(ctx, n, notification.Suppressed(string(reason)))
	}

	item, derr := a.prepareItem(ctx, n, opts)
	if derr != nil {
		return a.fail(ctx, n, derr)
	}

	_ = a.metrics.Inc(ctx, metrics.Sent)

	realtimeOK := false
	if cfg.RealtimeEnabled && a.realtime != nil && a.realtime.IsUserConnected(ctx, n.UserID) {
		if err := a.realtime.EmitToUser(ctx, n.UserID, *item); err == nil {
			realtimeOK = true
		} else {
			a.logger.LogAttrs(ctx, slog.LevelDebug, "realtime emit missed, falling back to storage",
				logger.UserID(n.UserID), logger.Error(err))
		}
	}

	persisted := false
	if !realtimeOK || cfg.ForcePersistence {
		if err := a.storage.Save(ctx, *item); err != nil {
			if !realtimeOK {
				return a.transportFailure(ctx, n, err)
			}
			a.logger.LogAttrs(ctx, slog.LevelWarn, "failed to persist inapp notification",
				logger.NotificationID(n.ID), logger.Error(err))
		} else {
			persisted = true
		}
	}

	res := notification.DeliveryResult{
		Success:        true,
		Channel:        ChannelName,
		NotificationID: n.ID,
		Recipient:      n.UserID,
		Timestamp:      time.Now(),
		Attempts:       1,
	}
	if realtimeOK {
		res.ProviderMessageID = "realtime"
	} else if persisted {
		res.ProviderMessageID = "stored"
	}
	_ = a.metrics.Inc(ctx, metrics.Delivered)
	a.record(ctx, res)
	a.emitter.Emit(ctx, events.Event{
		Name: events.DeliverySent, Channel: ChannelName,
		Payload: map[string]any{"notification_id": n.ID, "user_id": n.UserID, "realtime": realtimeOK},
	})
	return res
}

func (a *Adapter) prepareItem(ctx context.Context, n notification.Notification, opts *notification.SendOptions) (*Item, *notification.DeliveryError) {
	title := n.Title
	message := n.Message

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
			message = rendered.Body
		}
	}

	item := newItem(n, title, message, time.Now())
	return &item, nil
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

func (a *Adapter) transportFailure(ctx context.Context, n notification.Notification, err error) notification.DeliveryResult {
	_ = a.metrics.Inc(ctx, metrics.Failed)
	res := notification.Failure(ChannelName, n, &notification.DeliveryError{
		Code: notification.CodeTransportError, Message: err.Error(), Retryable: true,
	})
	res.Recipient = n.UserID
	a.record(ctx, res)
	a.emitter.Emit(ctx, events.Event{
		Name: events.DeliveryFailed, Channel: ChannelName,
		Payload: map[string]any{"notification_id": n.ID, "user_id": n.UserID, "code": string(notification.CodeTransportError)},
	})
	a.logger.LogAttrs(ctx, slog.LevelWarn, "inapp delivery failed",
		logger.NotificationID(n.ID), logger.UserID(n.UserID), logger.Error(err))
	return res
}

func (a *Adapter) fail(ctx context.Context, n notification.Notification, derr *notification.DeliveryError) notification.DeliveryResult {
	res := notification.Failure(ChannelName, n, derr)
	res.Recipient = n.UserID
	a.record(ctx, res)
	return res
}

func (a *Adapter) record(ctx context.Context, res notification.DeliveryResult) {
	if err := a.records.Save(ctx, notification.RecordFromResult(res)); err != nil {
		a.logger.LogAttrs(ctx, slog.LevelWarn, "failed to save delivery record",
			logger.NotificationID(res.NotificationID), logger.Error(err))
	}
}

// List returns the user's feed, newest first.
func (a *Adapter) List(ctx context.Context, userID string, opts ListOptions) ([]Item, error) {
	return a.storage.List(ctx, userID, opts)
}

// MarkRead marks notifications read and counts the ids as opens.
func (a *Adapter) MarkRead(ctx context.Context, userID string, ids ...string) error {
	if err := a.storage.MarkRead(ctx, userID, ids...); err != nil {
		return err
	}
	_ = a.metrics.Add(ctx, metrics.Opened, int64(len(ids)))
	a.emitter.Emit(ctx, events.Event{
		Name: events.InAppRead, Channel: ChannelName,
		Payload: map[string]any{"user_id": userID, "ids": ids},
	})
	return nil
}

// MarkAllRead marks the whole feed read and zeroes the counters.
func (a *Adapter) MarkAllRead(ctx context.Context, userID string) error {
	if err := a.storage.MarkAllRead(ctx, userID); err != nil {
		return err
	}
	a.emitter.Emit(ctx, events.Event{
		Name: events.InAppRead, Channel: ChannelName,
		Payload: map[string]any{"user_id": userID, "all": true},
	})
	return nil
}

// Dismiss removes notifications from the feed.
func (a *Adapter) Dismiss(ctx context.Context, userID string, ids ...string) error {
	if err := a.storage.Dismiss(ctx, userID, ids...); err != nil {
		return err
	}
	a.emitter.Emit(ctx, events.Event{
		Name: events.InAppDismissed, Channel: ChannelName,
		Payload: map[string]any{"user_id": userID, "ids": ids},
	})
	return nil
}

// CountUnread returns the unread counter for the user.
func (a *Adapter) CountUnread(ctx context.Context, userID string) (int, error) {
	return a.storage.CountUnread(ctx, userID)
}

// Badge returns the badge counter for the user.
func (a *Adapter) Badge(ctx context.Context, userID string) (int, error) {
	return a.storage.Badge(ctx, userID)
}

// ResetBadge zeroes the badge counter, typically when the client opens the
// notification center.
func (a *Adapter) ResetBadge(ctx context.Context, userID string) error {
	return a.storage.ResetBadge(ctx, userID)
}

// RunSweeper periodically purges expired feed items until ctx is cancelled.
// Run it in its own goroutine.
func (a *Adapter) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = a.cfg().SweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := a.storage.PurgeExpired(ctx, time.Now())
			if err != nil {
				a.logger.LogAttrs(ctx, slog.LevelWarn, "inapp expiry sweep failed",
					logger.Error(err))
				continue
			}
			if removed > 0 {
				a.logger.LogAttrs(ctx, slog.LevelDebug, "inapp expiry sweep completed",
					slog.Int("removed", removed))
			}
		}
	}
}
