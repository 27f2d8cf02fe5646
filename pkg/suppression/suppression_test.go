package suppression_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifykit/notifykit/pkg/suppression"
)

// storeFactories lets the same contract tests run against every Store
// implementation.
func storeFactories(t *testing.T) map[string]func(t *testing.T) suppression.Store {
	t.Helper()
	return map[string]func(t *testing.T) suppression.Store{
		"memory": func(t *testing.T) suppression.Store {
			return suppression.NewMemoryStore()
		},
		"redis": func(t *testing.T) suppression.Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return suppression.NewRedisStore(client)
		},
	}
}

func TestStore_Contract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("suppress then check", func(t *testing.T) {
				store := factory(t)
				require.NoError(t, store.Suppress(ctx, suppression.Entry{
					Channel: "email", RecipientKey: "a@example.com",
					Reason: suppression.ReasonHardBounce, At: time.Now(),
				}))

				blocked, reason, err := store.IsSuppressed(ctx, "email", "a@example.com")
				require.NoError(t, err)
				assert.True(t, blocked)
				assert.Equal(t, suppression.ReasonHardBounce, reason)
			})

			t.Run("unknown recipient is sendable", func(t *testing.T) {
				store := factory(t)
				blocked, _, err := store.IsSuppressed(ctx, "email", "clean@example.com")
				require.NoError(t, err)
				assert.False(t, blocked)
			})

			t.Run("channels are isolated", func(t *testing.T) {
				store := factory(t)
				require.NoError(t, store.Suppress(ctx, suppression.Entry{
					Channel: "email", RecipientKey: "a@example.com", Reason: suppression.ReasonComplaint,
				}))

				blocked, _, err := store.IsSuppressed(ctx, "sms", "a@example.com")
				require.NoError(t, err)
				assert.False(t, blocked, "suppression on one channel must not leak to another")
			})

			t.Run("re-suppress overwrites reason, stays blocked", func(t *testing.T) {
				store := factory(t)
				require.NoError(t, store.Suppress(ctx, suppression.Entry{
					Channel: "email", RecipientKey: "a@example.com", Reason: suppression.ReasonUnsubscribed,
				}))
				require.NoError(t, store.Suppress(ctx, suppression.Entry{
					Channel: "email", RecipientKey: "a@example.com", Reason: suppression.ReasonComplaint,
				}))

				blocked, reason, err := store.IsSuppressed(ctx, "email", "a@example.com")
				require.NoError(t, err)
				assert.True(t, blocked)
				assert.Equal(t, suppression.ReasonComplaint, reason)

				entries, err := store.List(ctx, "email")
				require.NoError(t, err)
				assert.Len(t, entries, 1, "re-suppression must not duplicate the entry")
			})

			t.Run("remove is the only reversal", func(t *testing.T) {
				store := factory(t)
				require.NoError(t, store.Suppress(ctx, suppression.Entry{
					Channel: "email", RecipientKey: "a@example.com", Reason: suppression.ReasonUnsubscribed,
				}))
				require.NoError(t, store.Remove(ctx, "email", "a@example.com"))

				blocked, _, err := store.IsSuppressed(ctx, "email", "a@example.com")
				require.NoError(t, err)
				assert.False(t, blocked)
			})

			t.Run("list returns all entries", func(t *testing.T) {
				store := factory(t)
				for _, addr := range []string{"a@example.com", "b@example.com", "c@example.com"} {
					require.NoError(t, store.Suppress(ctx, suppression.Entry{
						Channel: "email", RecipientKey: addr, Reason: suppression.ReasonManualBlock,
					}))
				}
				entries, err := store.List(ctx, "email")
				require.NoError(t, err)
				assert.Len(t, entries, 3)
			})
		})
	}
}

func TestRedisStore_MembershipWithoutDetail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := suppression.NewRedisStore(client)

	// A raw set member with no hash record (e.g. an imported blocklist)
	// still blocks the send.
	require.NoError(t, client.SAdd(ctx, "suppress:email", "legacy@example.com").Err())

	blocked, reason, err := store.IsSuppressed(ctx, "email", "legacy@example.com")
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, suppression.ReasonManualBlock, reason)
}
