package tokens

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory token store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]PushToken // token value -> record
}

// NewMemoryStore creates an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]PushToken)}
}

func (s *MemoryStore) Get(ctx context.Context, token string) (*PushToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return &t, nil
}

func (s *MemoryStore) Save(ctx context.Context, t PushToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.Token] = t
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

func (s *MemoryStore) UserTokens(ctx context.Context, userID string) ([]PushToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []PushToken
	for _, t := range s.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) StaleTokens(ctx context.Context, unusedSince time.Time, limit int) ([]PushToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []PushToken
	for _, t := range s.tokens {
		if lastActivity(t).Before(unusedSince) {
			out = append(out, t)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func lastActivity(t PushToken) time.Time {
	if t.LastUsedAt != nil && t.LastUsedAt.After(t.UpdatedAt) {
		return *t.LastUsedAt
	}
	return t.UpdatedAt
}
