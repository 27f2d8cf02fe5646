package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one JSON value per token, a per-user sorted set scored by
// registration time (so the oldest token for cap eviction is a single
// ZRANGE), and a global sorted set scored by last activity for retention
// purges.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the default "pushtoken" key prefix.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore creates a redis-backed token store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "pushtoken"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) tokenKey(token string) string { return s.prefix + ":" + token }
func (s *RedisStore) userKey(userID string) string { return s.prefix + ":user:" + userID }
func (s *RedisStore) activityKey() string          { return s.prefix + ":activity" }

func (s *RedisStore) Get(ctx context.Context, token string) (*PushToken, error) {
	data, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	var t PushToken
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *RedisStore) Save(ctx context.Context, t PushToken) error {
	// A re-registration may move the token to a new owner; drop the old
	// user-index entry first so the indexes never disagree.
	if prev, err := s.Get(ctx, t.Token); err == nil && prev.UserID != t.UserID {
		if err := s.client.ZRem(ctx, s.userKey(prev.UserID), t.Token).Err(); err != nil {
			return err
		}
	}

	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.tokenKey(t.Token), data, 0)
	pipe.ZAdd(ctx, s.userKey(t.UserID), redis.Z{Score: float64(t.CreatedAt.Unix()), Member: t.Token})
	pipe.ZAdd(ctx, s.activityKey(), redis.Z{Score: float64(lastActivity(t).Unix()), Member: t.Token})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	t, err := s.Get(ctx, token)
	if errors.Is(err, ErrTokenNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.tokenKey(token))
	pipe.ZRem(ctx, s.userKey(t.UserID), token)
	pipe.ZRem(ctx, s.activityKey(), token)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) UserTokens(ctx context.Context, userID string) ([]PushToken, error) {
	members, err := s.client.ZRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]PushToken, 0, len(members))
	for _, m := range members {
		t, err := s.Get(ctx, m)
		if errors.Is(err, ErrTokenNotFound) {
			// Index entry outlived the record; self-heal.
			s.client.ZRem(ctx, s.userKey(userID), m)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func (s *RedisStore) StaleTokens(ctx context.Context, unusedSince time.Time, limit int) ([]PushToken, error) {
	members, err := s.client.ZRangeByScore(ctx, s.activityKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(unusedSince.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]PushToken, 0, len(members))
	for _, m := range members {
		t, err := s.Get(ctx, m)
		if errors.Is(err, ErrTokenNotFound) {
			s.client.ZRem(ctx, s.activityKey(), m)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}
