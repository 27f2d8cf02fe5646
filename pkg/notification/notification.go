package notification

import (
	"strings"
	"time"
)

// Priority represents the notification priority level.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority maps a raw priority string to a Priority.
// "medium" is accepted as an alias for normal; unknown values default to normal.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "critical", "urgent":
		return PriorityCritical
	case "normal", "medium", "":
		return PriorityNormal
	default:
		return PriorityNormal
	}
}

// Action represents a call-to-action attached to a notification.
type Action struct {
	Action  string `json:"action"`
	Label   string `json:"label"`
	Icon    string `json:"icon,omitempty"`
	Primary bool   `json:"primary,omitempty"`
}

// Notification is the abstract message handed to a channel adapter.
// It is immutable once issued: adapters read it, never mutate it.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Priority  Priority   `json:"priority"`
	Metadata  Metadata   `json:"metadata,omitempty"`
	Actions   []Action   `json:"actions,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*n.ExpiresAt)
}
