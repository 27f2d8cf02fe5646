package metrics

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore is an in-memory metrics store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	counts map[string]map[Counter]int64
}

// NewMemoryStore creates an empty in-memory metrics store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]map[Counter]int64)}
}

func (s *MemoryStore) Inc(ctx context.Context, channel string, c Counter, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts[channel] == nil {
		s.counts[channel] = make(map[Counter]int64)
	}
	s.counts[channel][c] += delta
	return nil
}

func (s *MemoryStore) All(ctx context.Context, channel string) (map[Counter]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Counter]int64, len(s.counts[channel]))
	maps.Copy(out, s.counts[channel])
	return out, nil
}

func (s *MemoryStore) Reset(ctx context.Context, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, channel)
	return nil
}
