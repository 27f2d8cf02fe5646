package suppression

import (
	"context"
	"time"
)

// Reason explains why a recipient is suppressed on a channel.
type Reason string

const (
	ReasonUnsubscribed Reason = "unsubscribed"
	ReasonHardBounce   Reason = "hard_bounce"
	ReasonComplaint    Reason = "complaint"
	ReasonManualBlock  Reason = "manual_block"
)

// Entry is one durable suppression record. The presence of any entry for a
// (channel, recipient) pair makes the pair unsendable until it is removed
// through an explicit opt-in.
type Entry struct {
	Channel      string    `json:"channel"`
	RecipientKey string    `json:"recipient_key"`
	Reason       Reason    `json:"reason"`
	At           time.Time `json:"at"`
}

// Store is the durable suppression set, keyed per channel. IsSuppressed must
// be an O(1) membership check regardless of the suppression reason.
type Store interface {
	// Suppress adds the entry. Re-suppressing an existing recipient keeps the
	// pair suppressed and overwrites the recorded reason.
	Suppress(ctx context.Context, e Entry) error

	// IsSuppressed reports whether the pair is blocked, and the recorded
	// reason when it is.
	IsSuppressed(ctx context.Context, channel, recipientKey string) (bool, Reason, error)

	// Remove deletes the entry. This is the opt-in path, the only reversal.
	Remove(ctx context.Context, channel, recipientKey string) error

	// List returns all entries for a channel.
	List(ctx context.Context, channel string) ([]Entry, error)
}
