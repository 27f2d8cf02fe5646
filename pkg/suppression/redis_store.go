package suppression

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one SET per channel for the O(1) membership check and a
// HASH per channel holding the full entry for auditing and List.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the default "suppress" key prefix.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore creates a redis-backed suppression store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "suppress"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) setKey(channel string) string  { return s.prefix + ":" + channel }
func (s *RedisStore) hashKey(channel string) string { return s.prefix + ":" + channel + ":entries" }

func (s *RedisStore) Suppress(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.setKey(e.Channel), e.RecipientKey)
	pipe.HSet(ctx, s.hashKey(e.Channel), e.RecipientKey, data)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) IsSuppressed(ctx context.Context, channel, recipientKey string) (bool, Reason, error) {
	ok, err := s.client.SIsMember(ctx, s.setKey(channel), recipientKey).Result()
	if err != nil || !ok {
		return false, "", err
	}
	data, err := s.client.HGet(ctx, s.hashKey(channel), recipientKey).Bytes()
	if err == redis.Nil {
		// Membership without a detail record still blocks the send.
		return true, ReasonManualBlock, nil
	}
	if err != nil {
		return true, "", err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return true, "", err
	}
	return true, e.Reason, nil
}

func (s *RedisStore) Remove(ctx context.Context, channel, recipientKey string) error {
	pipe := s.client.TxPipeline()
	pipe.SRem(ctx, s.setKey(channel), recipientKey)
	pipe.HDel(ctx, s.hashKey(channel), recipientKey)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) List(ctx context.Context, channel string) ([]Entry, error) {
	raw, err := s.client.HGetAll(ctx, s.hashKey(channel)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for _, v := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
