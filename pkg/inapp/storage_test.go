package inapp_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifykit/notifykit/pkg/inapp"
)

func storageFactories(t *testing.T) map[string]func(t *testing.T, cap int) inapp.Storage {
	t.Helper()
	return map[string]func(t *testing.T, cap int) inapp.Storage{
		"memory": func(t *testing.T, cap int) inapp.Storage {
			return inapp.NewMemoryStorage(cap)
		},
		"redis": func(t *testing.T, cap int) inapp.Storage {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return inapp.NewRedisStorage(client, cap)
		},
	}
}

func feedItem(userID, id string, at time.Time) inapp.Item {
	return inapp.Item{
		ID:        id,
		UserID:    userID,
		Type:      "alert",
		Title:     "Title " + id,
		Message:   "Message " + id,
		CreatedAt: at,
	}
}

func TestStorage_SaveAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, factory := range storageFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := factory(t, 10)

			base := time.Now().Add(-time.Hour)
			for i := 0; i < 3; i++ {
				require.NoError(t, store.Save(ctx, feedItem("u1", "n"+strconv.Itoa(i), base.Add(time.Duration(i)*time.Minute))))
			}

			items, err := store.List(ctx, "u1", inapp.ListOptions{})
			require.NoError(t, err)
			require.Len(t, items, 3)
			assert.Equal(t, "n2", items[0].ID, "feed must be newest first")
			assert.Equal(t, "n0", items[2].ID)

			unread, err := store.CountUnread(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 3, unread)

			badge, err := store.Badge(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 3, badge)
		})
	}
}

func TestStorage_CapEviction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, factory := range storageFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := factory(t, 3)

			base := time.Now().Add(-time.Hour)
			for i := 0; i < 5; i++ {
				require.NoError(t, store.Save(ctx, feedItem("u1", "n"+strconv.Itoa(i), base.Add(time.Duration(i)*time.Minute))))
			}

			items, err := store.List(ctx, "u1", inapp.ListOptions{})
			require.NoError(t, err)
			require.Len(t, items, 3, "feed must stay at the cap")
			assert.Equal(t, "n4", items[0].ID)
			assert.Equal(t, "n2", items[2].ID, "oldest items evicted first")

			unread, err := store.CountUnread(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 3, unread, "evicted unread items must not inflate the counter")

			badge, err := store.Badge(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 3, badge, "badge must track unread evictions too")
		})
	}
}

func TestStorage_ReadTracking(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, factory := range storageFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := factory(t, 10)

			base := time.Now().Add(-time.Hour)
			for i := 0; i < 3; i++ {
				require.NoError(t, store.Save(ctx, feedItem("u1", "n"+strconv.Itoa(i), base.Add(time.Duration(i)*time.Minute))))
			}

			require.NoError(t, store.MarkRead(ctx, "u1", "n0"))

			got, err := store.Get(ctx, "u1", "n0")
			require.NoError(t, err)
			assert.True(t, got.Read)
			require.NotNil(t, got.ReadAt)

			unread, err := store.CountUnread(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 2, unread)

			// Marking an already-read item again must not drive the counter down.
			require.NoError(t, store.MarkRead(ctx, "u1", "n0"))
			unread, err = store.CountUnread(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 2, unread)

			onlyUnread, err := store.List(ctx, "u1", inapp.ListOptions{OnlyUnread: true})
			require.NoError(t, err)
			require.Len(t, onlyUnread, 2)
			for _, it := range onlyUnread {
				assert.False(t, it.Read)
			}

			require.NoError(t, store.MarkAllRead(ctx, "u1"))
			unread, err = store.CountUnread(ctx, "u1")
			require.NoError(t, err)
			assert.Zero(t, unread)
			badge, err := store.Badge(ctx, "u1")
			require.NoError(t, err)
			assert.Zero(t, badge)
		})
	}
}

func TestStorage_Dismiss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, factory := range storageFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := factory(t, 10)

			base := time.Now().Add(-time.Hour)
			for i := 0; i < 3; i++ {
				require.NoError(t, store.Save(ctx, feedItem("u1", "n"+strconv.Itoa(i), base.Add(time.Duration(i)*time.Minute))))
			}
			require.NoError(t, store.MarkRead(ctx, "u1", "n1"))

			require.NoError(t, store.Dismiss(ctx, "u1", "n0", "n1"))

			items, err := store.List(ctx, "u1", inapp.ListOptions{})
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, "n2", items[0].ID)

			// n0 was unread, n1 was read: the counter drops by one only.
			unread, err := store.CountUnread(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 1, unread)

			_, err = store.Get(ctx, "u1", "n0")
			assert.ErrorIs(t, err, inapp.ErrNotificationNotFound)
		})
	}
}

func TestStorage_Pagination(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, factory := range storageFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := factory(t, 20)

			base := time.Now().Add(-time.Hour)
			for i := 0; i < 10; i++ {
				require.NoError(t, store.Save(ctx, feedItem("u1", "n"+strconv.Itoa(i), base.Add(time.Duration(i)*time.Minute))))
			}

			page, err := store.List(ctx, "u1", inapp.ListOptions{Limit: 3, Offset: 2})
			require.NoError(t, err)
			require.Len(t, page, 3)
			assert.Equal(t, "n7", page[0].ID)
			assert.Equal(t, "n5", page[2].ID)

			since := base.Add(7*time.Minute + 30*time.Second)
			recent, err := store.List(ctx, "u1", inapp.ListOptions{Since: &since})
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "n9", recent[0].ID)
		})
	}
}

func TestStorage_ResetBadge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, factory := range storageFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := factory(t, 10)

			require.NoError(t, store.Save(ctx, feedItem("u1", "n0", time.Now())))
			require.NoError(t, store.ResetBadge(ctx, "u1"))

			badge, err := store.Badge(ctx, "u1")
			require.NoError(t, err)
			assert.Zero(t, badge)

			// Read state is untouched.
			unread, err := store.CountUnread(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 1, unread)
		})
	}
}

func TestStorage_PurgeExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, factory := range storageFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := factory(t, 10)

			now := time.Now()
			past := now.Add(-time.Minute)
			future := now.Add(time.Hour)

			expired := feedItem("u1", "old", now.Add(-time.Hour))
			expired.ExpiresAt = &past
			require.NoError(t, store.Save(ctx, expired))

			fresh := feedItem("u1", "fresh", now)
			fresh.ExpiresAt = &future
			require.NoError(t, store.Save(ctx, fresh))

			forever := feedItem("u2", "forever", now)
			require.NoError(t, store.Save(ctx, forever))

			removed, err := store.PurgeExpired(ctx, now)
			require.NoError(t, err)
			assert.Equal(t, 1, removed)

			items, err := store.List(ctx, "u1", inapp.ListOptions{})
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, "fresh", items[0].ID)

			unread, err := store.CountUnread(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 1, unread, "purge must fix the unread counter")

			other, err := store.List(ctx, "u2", inapp.ListOptions{})
			require.NoError(t, err)
			assert.Len(t, other, 1)
		})
	}
}

func TestStorage_UserIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, factory := range storageFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := factory(t, 10)

			require.NoError(t, store.Save(ctx, feedItem("u1", "n0", time.Now())))

			items, err := store.List(ctx, "u2", inapp.ListOptions{})
			require.NoError(t, err)
			assert.Empty(t, items)

			unread, err := store.CountUnread(ctx, "u2")
			require.NoError(t, err)
			assert.Zero(t, unread)
		})
	}
}
