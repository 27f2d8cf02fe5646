package inapp

import (
	"context"
	"time"
)

// ListOptions provides filtering and pagination for feed reads.
type ListOptions struct {
	Limit      int        // maximum items to return (0 = no limit)
	Offset     int        // items to skip, for pagination
	OnlyUnread bool       // when true, only unread items
	Since      *time.Time // when set, only items created after this time
}

// Storage persists the per-user notification feed. Feeds are capped and
// newest-first: saving beyond the cap evicts the oldest items. Unread and
// badge counts are maintained as counters on every mutation, never
// recomputed by scanning the feed.
type Storage interface {
	// Save stores an item at the head of the user's feed, evicting the
	// oldest items beyond the configured cap, and bumps both counters.
	Save(ctx context.Context, item Item) error

	// Get retrieves a single item from the user's feed.
	Get(ctx context.Context, userID, id string) (*Item, error)

	// List returns feed items newest first.
	List(ctx context.Context, userID string, opts ListOptions) ([]Item, error)

	// MarkRead marks the given items read. Already-read ids are no-ops.
	MarkRead(ctx context.Context, userID string, ids ...string) error

	// MarkAllRead marks the whole feed read and zeroes both counters.
	MarkAllRead(ctx context.Context, userID string) error

	// Dismiss removes items from the feed, decrementing the unread count
	// for any that were still unread.
	Dismiss(ctx context.Context, userID string, ids ...string) error

	// CountUnread returns the unread counter.
	CountUnread(ctx context.Context, userID string) (int, error)

	// Badge returns the badge counter.
	Badge(ctx context.Context, userID string) (int, error)

	// ResetBadge zeroes the badge counter without touching read state.
	ResetBadge(ctx context.Context, userID string) error

	// PurgeExpired removes every item across all feeds whose expiry has
	// elapsed at now, fixing counters, and returns how many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
