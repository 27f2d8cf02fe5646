package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a redis INCR per bucket. The bucket key
// embeds the floored timestamp, so concurrent increments hit the same
// counter and INCR provides the required atomicity.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a redis-backed counter store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Incr(ctx context.Context, key string, interval time.Duration) (int64, time.Time, error) {
	windowStart := time.Now().Truncate(interval)
	resetAt := windowStart.Add(interval)
	bucketKey := fmt.Sprintf("%s:%d", key, windowStart.Unix())

	count, err := s.client.Incr(ctx, bucketKey).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if count == 1 {
		// Grace period keeps the counter readable slightly past rollover
		// while still guaranteeing eventual cleanup. A bucket without a TTL
		// would never stop counting, so a failed Expire fails the check.
		if err := s.client.Expire(ctx, bucketKey, interval+time.Second).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to set bucket ttl: %w", err)
		}
	}
	return count, resetAt, nil
}
