package inapp

import (
	"time"

	"github.com/notifykit/notifykit/pkg/notification"
)

// Item is the stored, client-facing form of a notification. Its metadata has
// already passed through sanitizeMetadata, so it is safe to hand to browser
// and mobile clients verbatim.
type Item struct {
	ID        string                `json:"id"`
	UserID    string                `json:"user_id"`
	Type      string                `json:"type"`
	Title     string                `json:"title"`
	Message   string                `json:"message"`
	Priority  notification.Priority `json:"priority"`
	Metadata  map[string]any        `json:"metadata,omitempty"`
	Actions   []notification.Action `json:"actions,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	ExpiresAt *time.Time            `json:"expires_at,omitempty"`
	Read      bool                  `json:"read"`
	ReadAt    *time.Time            `json:"read_at,omitempty"`
}

// IsExpired reports whether the item's expiry has elapsed at now.
func (it Item) IsExpired(now time.Time) bool {
	return it.ExpiresAt != nil && now.After(*it.ExpiresAt)
}

func newItem(n notification.Notification, title, message string, now time.Time) Item {
	return Item{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     title,
		Message:   message,
		Priority:  n.Priority,
		Metadata:  sanitizeMetadata(n.Metadata),
		Actions:   n.Actions,
		CreatedAt: now,
		ExpiresAt: n.ExpiresAt,
	}
}
