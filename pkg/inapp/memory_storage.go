package inapp

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStorage is the in-process Storage. Suitable for single-instance
// deployments and tests.
type MemoryStorage struct {
	mu     sync.RWMutex
	cap    int
	feeds  map[string][]Item // newest first
	unread map[string]int
	badge  map[string]int
}

func NewMemoryStorage(maxPerUser int) *MemoryStorage {
	if maxPerUser <= 0 {
		maxPerUser = defaultMaxPerUser
	}
	return &MemoryStorage{
		cap:    maxPerUser,
		feeds:  make(map[string][]Item),
		unread: make(map[string]int),
		badge:  make(map[string]int),
	}
}

func (s *MemoryStorage) Save(ctx context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed := append([]Item{item}, s.feeds[item.UserID]...)
	for len(feed) > s.cap {
		evicted := feed[len(feed)-1]
		feed = feed[:len(feed)-1]
		if !evicted.Read {
			s.decrUnread(item.UserID)
			s.decrBadge(item.UserID)
		}
	}
	s.feeds[item.UserID] = feed
	s.unread[item.UserID]++
	s.badge[item.UserID]++
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, userID, id string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.feeds[userID] {
		if it.ID == id {
			found := it
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
}

func (s *MemoryStorage) List(ctx context.Context, userID string, opts ListOptions) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Item
	skipped := 0
	for _, it := range s.feeds[userID] {
		if opts.OnlyUnread && it.Read {
			continue
		}
		if opts.Since != nil && !it.CreatedAt.After(*opts.Since) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, it)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStorage) MarkRead(ctx context.Context, userID string, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	feed := s.feeds[userID]
	for i := range feed {
		if _, ok := want[feed[i].ID]; !ok || feed[i].Read {
			continue
		}
		feed[i].Read = true
		at := now
		feed[i].ReadAt = &at
		s.decrUnread(userID)
		s.decrBadge(userID)
	}
	return nil
}

func (s *MemoryStorage) MarkAllRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	feed := s.feeds[userID]
	for i := range feed {
		if feed[i].Read {
			continue
		}
		feed[i].Read = true
		at := now
		feed[i].ReadAt = &at
	}
	s.unread[userID] = 0
	s.badge[userID] = 0
	return nil
}

func (s *MemoryStorage) Dismiss(ctx context.Context, userID string, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	feed := s.feeds[userID][:0:0]
	for _, it := range s.feeds[userID] {
		if _, ok := want[it.ID]; !ok {
			feed = append(feed, it)
			continue
		}
		if !it.Read {
			s.decrUnread(userID)
			s.decrBadge(userID)
		}
	}
	s.feeds[userID] = feed
	return nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread[userID], nil
}

func (s *MemoryStorage) Badge(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.badge[userID], nil
}

func (s *MemoryStorage) ResetBadge(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.badge[userID] = 0
	return nil
}

func (s *MemoryStorage) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, feed := range s.feeds {
		kept := feed[:0:0]
		for _, it := range feed {
			if !it.IsExpired(now) {
				kept = append(kept, it)
				continue
			}
			removed++
			if !it.Read {
				s.decrUnread(userID)
				s.decrBadge(userID)
			}
		}
		s.feeds[userID] = kept
	}
	return removed, nil
}

func (s *MemoryStorage) decrUnread(userID string) {
	if s.unread[userID] > 0 {
		s.unread[userID]--
	}
}

func (s *MemoryStorage) decrBadge(userID string) {
	if s.badge[userID] > 0 {
		s.badge[userID]--
	}
}
