package suppression

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory suppression store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]Entry // channel -> recipientKey -> entry
}

// NewMemoryStore creates an empty in-memory suppression store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]map[string]Entry)}
}

func (s *MemoryStore) Suppress(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[e.Channel] == nil {
		s.entries[e.Channel] = make(map[string]Entry)
	}
	s.entries[e.Channel][e.RecipientKey] = e
	return nil
}

func (s *MemoryStore) IsSuppressed(ctx context.Context, channel, recipientKey string) (bool, Reason, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[channel][recipientKey]
	if !ok {
		return false, "", nil
	}
	return true, e.Reason, nil
}

func (s *MemoryStore) Remove(ctx context.Context, channel, recipientKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries[channel], recipientKey)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, channel string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]Entry, 0, len(s.entries[channel]))
	for _, e := range s.entries[channel] {
		entries = append(entries, e)
	}
	return entries, nil
}
