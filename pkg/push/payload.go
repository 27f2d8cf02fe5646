package push

import (
	"time"

	"github.com/notifykit/notifykit/pkg/notification"
)

// Metadata keys read by the push adapter on top of the engine-wide set.
const (
	metaBadge       = "badge"
	metaSubtitle    = "subtitle"
	metaCategory    = "category"
	metaThreadID    = "threadId"
	metaAttachments = "attachments"
	metaChannelID   = "channelId"
	metaColor       = "color"
	metaVisibility  = "visibility"
	metaClickAction = "clickAction"
)

// APNSOptions carries the iOS-specific presentation fields.
type APNSOptions struct {
	Subtitle    string   `json:"subtitle,omitempty"`
	Category    string   `json:"category,omitempty"`
	ThreadID    string   `json:"thread_id,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// AndroidOptions carries the Android-specific presentation fields.
type AndroidOptions struct {
	ChannelID   string `json:"channel_id,omitempty"`
	Color       string `json:"color,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
	ClickAction string `json:"click_action,omitempty"`
}

// Payload is the provider-agnostic push message. Providers map it onto
// their own wire format and ignore the fields their platform has no
// equivalent for.
type Payload struct {
	NotificationID string         `json:"notification_id"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Icon           string         `json:"icon,omitempty"`
	Sound          string         `json:"sound,omitempty"`
	Badge          int            `json:"badge,omitempty"`
	Priority       string         `json:"priority,omitempty"`
	TTL            time.Duration  `json:"ttl,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	APNS           APNSOptions    `json:"apns,omitempty"`
	Android        AndroidOptions `json:"android,omitempty"`
}

// buildPayload assembles the payload from notification content and the
// well-known metadata keys. Everything else in the metadata passes through
// verbatim as Data.
func buildPayload(n notification.Notification, title, body, defaultSound string) Payload {
	p := Payload{
		NotificationID: n.ID,
		Title:          title,
		Body:           body,
		Icon:           n.Metadata.Icon(),
		Sound:          n.Metadata.Sound(),
		Priority:       string(n.Priority),
	}
	if p.Sound == "" {
		p.Sound = defaultSound
	}
	if ttl, ok := n.Metadata.TTL(); ok {
		p.TTL = ttl
	}
	if b, ok := n.Metadata[metaBadge].(int); ok {
		p.Badge = b
	} else if f, ok := n.Metadata[metaBadge].(float64); ok {
		p.Badge = int(f)
	}

	p.APNS = APNSOptions{
		Subtitle: n.Metadata.String(metaSubtitle),
		Category: n.Metadata.String(metaCategory),
		ThreadID: n.Metadata.String(metaThreadID),
	}
	if atts, ok := n.Metadata[metaAttachments].([]string); ok {
		p.APNS.Attachments = atts
	} else if raw, ok := n.Metadata[metaAttachments].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				p.APNS.Attachments = append(p.APNS.Attachments, s)
			}
		}
	}

	p.Android = AndroidOptions{
		ChannelID:   n.Metadata.String(metaChannelID),
		Color:       n.Metadata.String(metaColor),
		Visibility:  n.Metadata.String(metaVisibility),
		ClickAction: n.Metadata.String(metaClickAction),
	}

	// Pass through caller data, minus the keys already lifted into typed
	// payload fields.
	consumed := map[string]struct{}{
		notification.MetaTemplateID: {}, notification.MetaIcon: {}, notification.MetaSound: {},
		notification.MetaTTL: {}, metaBadge: {}, metaSubtitle: {}, metaCategory: {},
		metaThreadID: {}, metaAttachments: {}, metaChannelID: {}, metaColor: {},
		metaVisibility: {}, metaClickAction: {},
	}
	for k, v := range n.Metadata {
		if _, ok := consumed[k]; ok {
			continue
		}
		if p.Data == nil {
			p.Data = make(map[string]any)
		}
		p.Data[k] = v
	}
	return p
}
