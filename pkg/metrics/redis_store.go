package metrics

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per channel, updated with HINCRBY so concurrent
// adapters never lose increments.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a redis-backed metrics store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "metrics"}
}

func (s *RedisStore) key(channel string) string { return s.prefix + ":" + channel }

func (s *RedisStore) Inc(ctx context.Context, channel string, c Counter, delta int64) error {
	return s.client.HIncrBy(ctx, s.key(channel), string(c), delta).Err()
}

func (s *RedisStore) All(ctx context.Context, channel string) (map[Counter]int64, error) {
	raw, err := s.client.HGetAll(ctx, s.key(channel)).Result()
	if err != nil {
		return nil, err
	}
	counts := make(map[Counter]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		counts[Counter(k)] = n
	}
	return counts, nil
}

func (s *RedisStore) Reset(ctx context.Context, channel string) error {
	return s.client.Del(ctx, s.key(channel)).Err()
}
