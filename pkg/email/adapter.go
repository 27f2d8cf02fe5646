package email

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
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
const ChannelName = "email"

// Adapter implements the common channel contract for email.
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
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithDirectory sets the recipient directory used when metadata carries no
// address override.
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

// New creates the email adapter. Configuration problems fail here, fatally:
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
		{Name: "1s", Interval: time.Second, Limit: a.config.RatePerSecond},
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

// Send implements notification.Channel. Email delivers to a single address,
// so the slice always holds exactly one result.
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
	if res := a.checkLimit(ctx, a.global, "email:global"); res != nil {
		return a.fail(ctx, n, "", res)
	}

	addr, derr := a.resolveAddress(ctx, n)
	if derr != nil {
		return a.fail(ctx, n, "", derr)
	}

	if res := a.checkLimit(ctx, a.recipient, "email:rcpt:"+addr); res != nil {
		return a.fail(ctx, n, addr, res)
	}

	if blocked, reason, err := a.supp.IsSuppressed(ctx, ChannelName, addr); err != nil {
		return a.fail(ctx, n, addr, &notification.DeliveryError{
			Code: notification.CodeTransportError, Message: "suppression check failed: " + err.Error(), Retryable: true,
		})
	} else if blocked {
		_ = a.metrics.Inc(ctx, metrics.Suppressed)
		return a.fail(ctx, n, addr, notification.Suppressed(string(reason)))
	}

	msg, derr := a.prepare(ctx, cfg, n, addr, opts)
	if derr != nil {
		return a.fail(ctx, n, addr, derr)
	}

	_ = a.metrics.Inc(ctx, metrics.Sent)

	sendCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	defer cancel()

	messageID, err := a.sender.Send(sendCtx, *msg)
	if err != nil {
		return a.transportFailure(ctx, n, addr, sendCtx, err)
	}

	res := notification.DeliveryResult{
		Success:           true,
		Channel:           ChannelName,
		NotificationID:    n.ID,
		Recipient:         addr,
		Timestamp:         time.Now(),
		Attempts:          1,
		ProviderMessageID: messageID,
		Accepted:          []string{addr},
	}
	_ = a.metrics.Inc(ctx, metrics.Delivered)
	a.record(ctx, res)
	a.emitter.Emit(ctx, events.Event{
		Name: events.DeliverySent, Channel: ChannelName,
		Payload: map[string]any{"notification_id": n.ID, "recipient": addr},
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

func (a *Adapter) resolveAddress(ctx context.Context, n notification.Notification) (string, *notification.DeliveryError) {
	if addr := n.Metadata.RecipientEmail(); addr != "" {
		if !emailRegex.MatchString(addr) {
			return "", &notification.DeliveryError{
				Code: notification.CodeInvalidRecipient, Message: "malformed recipient email: " + addr, Permanent: true,
			}
		}
		return addr, nil
	}
	if a.dir == nil {
		return "", &notification.DeliveryError{
			Code: notification.CodeNoRecipient, Message: "no recipient email and no directory configured", Permanent: true,
		}
	}
	addr, err := a.dir.ResolveAddress(ctx, n.UserID, ChannelName)
	if err != nil {
		return "", &notification.DeliveryError{
			Code: notification.CodeNoRecipient, Message: "no email address for user " + n.UserID, Permanent: true,
		}
	}
	return addr, nil
}

// prepare renders the message and applies headers and tracking.
func (a *Adapter) prepare(ctx context.Context, cfg Config, n notification.Notification, addr string, opts *notification.SendOptions) (*Message, *notification.DeliveryError) {
	subject := n.Title
	textBody := n.Message
	htmlBody := ""

	templateID := n.Metadata.TemplateID()
	skipTemplate := opts != nil && opts.SkipTemplate
	if templateID != "" && !skipTemplate && a.renderer != nil {
		rendered, err := a.renderer.Render(ctx, templateID, templates.PersonalizationContext{
			User:    templates.RenderUser{ID: n.UserID, Email: addr},
			Context: templates.RenderEnv{Timestamp: time.Now()},
			Data:    n.Metadata,
		}, ChannelName)
		if err != nil {
			return nil, &notification.DeliveryError{
				Code: notification.CodeTemplateError, Message: "template render failed: " + err.Error(),
			}
		}
		if rendered.Subject != "" {
			subject = rendered.Subject
		}
		if rendered.Body != "" {
			textBody = rendered.Body
		}
		htmlBody = rendered.HTMLBody
	}

	if htmlBody == "" {
		htmlBody = textToHTML(textBody)
	}

	headers := make(map[string]string, len(cfg.DefaultHeaders)+3)
	for k, v := range cfg.DefaultHeaders {
		headers[k] = v
	}
	headers["X-Notification-ID"] = n.ID
	headers["X-Priority"] = priorityHeader(n.Priority)
	if listID := n.Metadata.ListID(); listID != "" {
		headers["List-ID"] = listID
		if cfg.TrackingBaseURL != "" {
			headers["List-Unsubscribe"] = "<" + cfg.TrackingBaseURL + "/unsubscribe?recipient=" + addr + ">"
		}
	}

	// Tracking only ever touches the HTML body; the text part stays as
	// authored. Rewrite links first so the pixel and unsubscribe URLs added
	// afterwards are not themselves rewritten.
	if cfg.TrackClicks {
		htmlBody = rewriteLinks(htmlBody, cfg.TrackingBaseURL, n.ID)
	}
	if cfg.TrackOpens {
		htmlBody = injectOpenPixel(htmlBody, cfg.TrackingBaseURL, n.ID)
	}
	if cfg.TrackUnsubscribe {
		htmlBody = appendUnsubscribeLink(htmlBody, cfg.TrackingBaseURL, addr)
	}

	replyTo := cfg.ReplyToEmail
	if replyTo == "" {
		replyTo = cfg.SenderEmail
	}

	return &Message{
		From:     cfg.SenderEmail,
		ReplyTo:  replyTo,
		To:       addr,
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
		Headers:  headers,
		Tag:      n.Type,
	}, nil
}

// priorityHeader maps engine priority onto the conventional X-Priority scale.
func priorityHeader(p notification.Priority) string {
	switch p {
	case notification.PriorityCritical:
		return strconv.Itoa(1)
	case notification.PriorityHigh:
		return strconv.Itoa(2)
	case notification.PriorityLow:
		return strconv.Itoa(4)
	default:
		return strconv.Itoa(3)
	}
}

func (a *Adapter) transportFailure(ctx context.Context, n notification.Notification, addr string, sendCtx context.Context, err error) notification.DeliveryResult {
	var derr *notification.DeliveryError
	switch {
	case isTimeout(sendCtx, err):
		derr = notification.Timeout("email send timed out")
	case isPermanentFailure(err):
		derr = &notification.DeliveryError{
			Code: notification.CodeProviderRejected, Message: err.Error(), Permanent: true,
		}
		// Permanent mailbox failures double as hard bounces: block the
		// address so the next send never reaches the provider.
		a.suppress(ctx, addr, suppression.ReasonHardBounce)
		_ = a.metrics.Inc(ctx, metrics.Bounced)
	default:
		derr = &notification.DeliveryError{
			Code: notification.CodeTransportError, Message: err.Error(), Retryable: true,
		}
	}

	_ = a.metrics.Inc(ctx, metrics.Failed)
	res := notification.Failure(ChannelName, n, derr)
	res.Recipient = addr
	res.Rejected = []string{addr}
	a.record(ctx, res)
	a.emitter.Emit(ctx, events.Event{
		Name: events.DeliveryFailed, Channel: ChannelName,
		Payload: map[string]any{"notification_id": n.ID, "recipient": addr, "code": string(derr.Code)},
	})
	a.logger.LogAttrs(ctx, slog.LevelWarn, "email delivery failed",
		logger.NotificationID(n.ID), logger.Recipient(addr),
		logger.Provider(a.sender.Name()), logger.Error(err))
	return res
}

func (a *Adapter) fail(ctx context.Context, n notification.Notification, addr string, derr *notification.DeliveryError) notification.DeliveryResult {
	res := notification.Failure(ChannelName, n, derr)
	res.Recipient = addr
	a.record(ctx, res)
	return res
}

func (a *Adapter) record(ctx context.Context, res notification.DeliveryResult) {
	if err := a.records.Save(ctx, notification.RecordFromResult(res)); err != nil {
		a.logger.LogAttrs(ctx, slog.LevelWarn, "failed to save delivery record",
			logger.NotificationID(res.NotificationID), logger.Error(err))
	}
}

func (a *Adapter) suppress(ctx context.Context, addr string, reason suppression.Reason) {
	if err := a.supp.Suppress(ctx, suppression.Entry{
		Channel: ChannelName, RecipientKey: addr, Reason: reason, At: time.Now(),
	}); err != nil {
		a.logger.LogAttrs(ctx, slog.LevelError, "failed to persist suppression entry",
			logger.Recipient(addr), logger.Error(err))
	}
}
