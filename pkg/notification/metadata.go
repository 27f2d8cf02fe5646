package notification

import "time"

// Metadata is the loosely-typed bag callers attach to a notification.
// The engine reads a small set of well-known keys through the typed
// accessors below; everything else passes through untouched to the
// channel or template layer.
type Metadata map[string]any

// Well-known metadata keys interpreted by the engine.
const (
	MetaTemplateID     = "templateId"
	MetaRecipientEmail = "recipientEmail"
	MetaPhoneNumber    = "phoneNumber"
	MetaListID         = "listId"
	MetaIcon           = "icon"
	MetaSound          = "sound"
	MetaTTL            = "ttl"
)

// String returns the string value for key, or "" when absent or not a string.
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// TemplateID returns the template reference, if any.
func (m Metadata) TemplateID() string { return m.String(MetaTemplateID) }

// RecipientEmail returns the per-message email address override, if any.
func (m Metadata) RecipientEmail() string { return m.String(MetaRecipientEmail) }

// PhoneNumber returns the per-message phone number override, if any.
func (m Metadata) PhoneNumber() string { return m.String(MetaPhoneNumber) }

// ListID returns the mailing list identifier used for list/unsubscribe headers.
func (m Metadata) ListID() string { return m.String(MetaListID) }

// Icon returns the channel hint for an icon resource.
func (m Metadata) Icon() string { return m.String(MetaIcon) }

// Sound returns the channel hint for a notification sound.
func (m Metadata) Sound() string { return m.String(MetaSound) }

// TTL returns the per-message time-to-live hint. Accepts a duration string,
// a time.Duration, or a number of seconds.
func (m Metadata) TTL() (time.Duration, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[MetaTTL].(type) {
	case time.Duration:
		return v, true
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, false
		}
		return d, true
	case int:
		return time.Duration(v) * time.Second, true
	case int64:
		return time.Duration(v) * time.Second, true
	case float64:
		return time.Duration(v * float64(time.Second)), true
	default:
		return 0, false
	}
}
