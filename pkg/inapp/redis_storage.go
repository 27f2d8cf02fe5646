package inapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage is the shared Storage for multi-instance deployments. The
// feed is a per-user list of ids with one JSON value per item; unread and
// badge live as plain counters so reads never scan the feed.
type RedisStorage struct {
	client redis.UniversalClient
	cap    int
}

// decrFloorScript decrements a counter but never below zero, so concurrent
// read/dismiss races cannot drive counts negative.
var decrFloorScript = redis.NewScript(`
local v = redis.call('DECR', KEYS[1])
if v < 0 then
	redis.call('SET', KEYS[1], '0')
	return 0
end
return v
`)

func NewRedisStorage(client redis.UniversalClient, maxPerUser int) *RedisStorage {
	if maxPerUser <= 0 {
		maxPerUser = defaultMaxPerUser
	}
	return &RedisStorage{client: client, cap: maxPerUser}
}

func (s *RedisStorage) feedKey(userID string) string {
	return "inapp:user:" + userID + ":feed"
}

func (s *RedisStorage) itemKey(userID, id string) string {
	return "inapp:user:" + userID + ":item:" + id
}

func (s *RedisStorage) unreadKey(userID string) string {
	return "inapp:user:" + userID + ":unread"
}

func (s *RedisStorage) badgeKey(userID string) string {
	return "inapp:user:" + userID + ":badge"
}

const usersKey = "inapp:users"

func (s *RedisStorage) Save(ctx context.Context, item Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal inapp item: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, usersKey, item.UserID)
	pipe.Set(ctx, s.itemKey(item.UserID, item.ID), data, 0)
	pipe.LPush(ctx, s.feedKey(item.UserID), item.ID)
	pipe.Incr(ctx, s.unreadKey(item.UserID))
	pipe.Incr(ctx, s.badgeKey(item.UserID))
	lenCmd := pipe.LLen(ctx, s.feedKey(item.UserID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save inapp item: %w", err)
	}

	// Evict beyond the cap, oldest first, keeping both counters honest.
	for over := lenCmd.Val() - int64(s.cap); over > 0; over-- {
		id, err := s.client.RPop(ctx, s.feedKey(item.UserID)).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to evict inapp item: %w", err)
		}
		evicted, err := s.loadItem(ctx, item.UserID, id)
		if err == nil && !evicted.Read {
			_ = decrFloorScript.Run(ctx, s.client, []string{s.unreadKey(item.UserID)}).Err()
			_ = decrFloorScript.Run(ctx, s.client, []string{s.badgeKey(item.UserID)}).Err()
		}
		s.client.Del(ctx, s.itemKey(item.UserID, id))
	}
	return nil
}

func (s *RedisStorage) loadItem(ctx context.Context, userID, id string) (*Item, error) {
	data, err := s.client.Get(ctx, s.itemKey(userID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load inapp item: %w", err)
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inapp item: %w", err)
	}
	return &item, nil
}

func (s *RedisStorage) Get(ctx context.Context, userID, id string) (*Item, error) {
	return s.loadItem(ctx, userID, id)
}

func (s *RedisStorage) List(ctx context.Context, userID string, opts ListOptions) ([]Item, error) {
	ids, err := s.client.LRange(ctx, s.feedKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list inapp feed: %w", err)
	}

	var out []Item
	skipped := 0
	for _, id := range ids {
		item, err := s.loadItem(ctx, userID, id)
		if errors.Is(err, ErrNotificationNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if opts.OnlyUnread && item.Read {
			continue
		}
		if opts.Since != nil && !item.CreatedAt.After(*opts.Since) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, *item)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *RedisStorage) MarkRead(ctx context.Context, userID string, ids ...string) error {
	now := time.Now()
	for _, id := range ids {
		item, err := s.loadItem(ctx, userID, id)
		if errors.Is(err, ErrNotificationNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if item.Read {
			continue
		}
		item.Read = true
		at := now
		item.ReadAt = &at
		if err := s.storeItem(ctx, userID, *item); err != nil {
			return err
		}
		_ = decrFloorScript.Run(ctx, s.client, []string{s.unreadKey(userID)}).Err()
		_ = decrFloorScript.Run(ctx, s.client, []string{s.badgeKey(userID)}).Err()
	}
	return nil
}

func (s *RedisStorage) storeItem(ctx context.Context, userID string, item Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal inapp item: %w", err)
	}
	if err := s.client.Set(ctx, s.itemKey(userID, item.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store inapp item: %w", err)
	}
	return nil
}

func (s *RedisStorage) MarkAllRead(ctx context.Context, userID string) error {
	ids, err := s.client.LRange(ctx, s.feedKey(userID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list inapp feed: %w", err)
	}

	now := time.Now()
	for _, id := range ids {
		item, err := s.loadItem(ctx, userID, id)
		if errors.Is(err, ErrNotificationNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if item.Read {
			continue
		}
		item.Read = true
		at := now
		item.ReadAt = &at
		if err := s.storeItem(ctx, userID, *item); err != nil {
			return err
		}
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.unreadKey(userID), 0, 0)
	pipe.Set(ctx, s.badgeKey(userID), 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to reset inapp counters: %w", err)
	}
	return nil
}

func (s *RedisStorage) Dismiss(ctx context.Context, userID string, ids ...string) error {
	for _, id := range ids {
		item, err := s.loadItem(ctx, userID, id)
		if errors.Is(err, ErrNotificationNotFound) {
			s.client.LRem(ctx, s.feedKey(userID), 0, id)
			continue
		}
		if err != nil {
			return err
		}

		pipe := s.client.TxPipeline()
		pipe.LRem(ctx, s.feedKey(userID), 0, id)
		pipe.Del(ctx, s.itemKey(userID, id))
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to dismiss inapp item: %w", err)
		}
		if !item.Read {
			_ = decrFloorScript.Run(ctx, s.client, []string{s.unreadKey(userID)}).Err()
			_ = decrFloorScript.Run(ctx, s.client, []string{s.badgeKey(userID)}).Err()
		}
	}
	return nil
}

func (s *RedisStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	n, err := s.client.Get(ctx, s.unreadKey(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read unread count: %w", err)
	}
	return n, nil
}

func (s *RedisStorage) Badge(ctx context.Context, userID string) (int, error) {
	n, err := s.client.Get(ctx, s.badgeKey(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read badge count: %w", err)
	}
	return n, nil
}

func (s *RedisStorage) ResetBadge(ctx context.Context, userID string) error {
	if err := s.client.Set(ctx, s.badgeKey(userID), 0, 0).Err(); err != nil {
		return fmt.Errorf("failed to reset badge count: %w", err)
	}
	return nil
}

func (s *RedisStorage) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	users, err := s.client.SMembers(ctx, usersKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list inapp users: %w", err)
	}

	removed := 0
	for _, userID := range users {
		ids, err := s.client.LRange(ctx, s.feedKey(userID), 0, -1).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to list inapp feed: %w", err)
		}
		for _, id := range ids {
			item, err := s.loadItem(ctx, userID, id)
			if errors.Is(err, ErrNotificationNotFound) {
				s.client.LRem(ctx, s.feedKey(userID), 0, id)
				continue
			}
			if err != nil {
				return removed, err
			}
			if !item.IsExpired(now) {
				continue
			}
			if err := s.Dismiss(ctx, userID, id); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
