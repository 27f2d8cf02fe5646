package tokens_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifykit/notifykit/pkg/tokens"
)

func iosToken(seed byte) string {
	return strings.Repeat(fmt.Sprintf("%02x", seed), 32)
}

func androidToken(seed string) string {
	return seed + ":" + strings.Repeat("x", 140)
}

func newRegistry(t *testing.T, cfg tokens.Config) *tokens.Registry {
	t.Helper()
	r, err := tokens.NewRegistry(tokens.NewMemoryStore(), cfg)
	require.NoError(t, err)
	return r
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("valid registration", func(t *testing.T) {
		r := newRegistry(t, tokens.Config{})
		tok, err := r.Register(ctx, tokens.RegisterInput{
			UserID: "u1", Token: iosToken(0xab), Platform: tokens.PlatformIOS, DeviceID: "d1",
		})
		require.NoError(t, err)
		assert.True(t, tok.Enabled)
		assert.Equal(t, "u1", tok.UserID)
		assert.Zero(t, tok.FailureCount)
	})

	t.Run("requires user id", func(t *testing.T) {
		r := newRegistry(t, tokens.Config{})
		_, err := r.Register(ctx, tokens.RegisterInput{Token: iosToken(0xab), Platform: tokens.PlatformIOS})
		assert.ErrorIs(t, err, tokens.ErrInvalidToken)
	})

	t.Run("shape validation per platform", func(t *testing.T) {
		r := newRegistry(t, tokens.Config{})
		tests := []struct {
			name     string
			token    string
			platform tokens.Platform
			wantErr  bool
		}{
			{"ios valid", iosToken(0x01), tokens.PlatformIOS, false},
			{"ios wrong length", "abcdef", tokens.PlatformIOS, true},
			{"ios non-hex", strings.Repeat("zz", 32), tokens.PlatformIOS, true},
			{"android valid", androidToken("a"), tokens.PlatformAndroid, false},
			{"android too short", "short", tokens.PlatformAndroid, true},
			{"web valid", strings.Repeat("w", 32), tokens.PlatformWeb, false},
			{"web too short", "w", tokens.PlatformWeb, true},
			{"unknown platform", iosToken(0x02), tokens.Platform("windows"), true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := r.Register(ctx, tokens.RegisterInput{
					UserID: "u1", Token: tt.token, Platform: tt.platform,
				})
				if tt.wantErr {
					assert.ErrorIs(t, err, tokens.ErrInvalidToken)
				} else {
					assert.NoError(t, err)
				}
			})
		}
	})

	t.Run("re-register upserts instead of duplicating", func(t *testing.T) {
		r := newRegistry(t, tokens.Config{})
		token := iosToken(0xcd)

		_, err := r.Register(ctx, tokens.RegisterInput{UserID: "u1", Token: token, Platform: tokens.PlatformIOS})
		require.NoError(t, err)

		// Same token value moves to a new owner and comes back enabled.
		_, err = r.RecordFailure(ctx, token, "transient", false)
		require.NoError(t, err)

		tok, err := r.Register(ctx, tokens.RegisterInput{UserID: "u2", Token: token, Platform: tokens.PlatformIOS})
		require.NoError(t, err)
		assert.Equal(t, "u2", tok.UserID)
		assert.True(t, tok.Enabled)
		assert.Zero(t, tok.FailureCount, "upsert resets the failure streak")

		u1Tokens, err := r.TokensForUser(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, u1Tokens)

		u2Tokens, err := r.TokensForUser(ctx, "u2")
		require.NoError(t, err)
		assert.Len(t, u2Tokens, 1)
	})

	t.Run("cap evicts oldest first", func(t *testing.T) {
		r := newRegistry(t, tokens.Config{MaxTokensPerUser: 3})

		var registered []string
		for i := 0; i < 3; i++ {
			token := iosToken(byte(0x10 + i))
			_, err := r.Register(ctx, tokens.RegisterInput{UserID: "u1", Token: token, Platform: tokens.PlatformIOS})
			require.NoError(t, err)
			registered = append(registered, token)
			time.Sleep(time.Millisecond)
		}

		newest := iosToken(0x20)
		_, err := r.Register(ctx, tokens.RegisterInput{UserID: "u1", Token: newest, Platform: tokens.PlatformIOS})
		require.NoError(t, err)

		current, err := r.TokensForUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, current, 3, "cap must hold after registration")

		values := make([]string, len(current))
		for i, tok := range current {
			values[i] = tok.Token
		}
		assert.NotContains(t, values, registered[0], "oldest token must be the one evicted")
		assert.Contains(t, values, registered[1])
		assert.Contains(t, values, registered[2])
		assert.Contains(t, values, newest)
	})
}

func TestRegistry_FailureLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("disables at the failure threshold", func(t *testing.T) {
		r := newRegistry(t, tokens.Config{FailureThreshold: 5})
		token := iosToken(0x31)
		_, err := r.Register(ctx, tokens.RegisterInput{UserID: "u1", Token: token, Platform: tokens.PlatformIOS})
		require.NoError(t, err)

		for i := 0; i < 4; i++ {
			tok, err := r.RecordFailure(ctx, token, "timeout", false)
			require.NoError(t, err)
			assert.True(t, tok.Enabled, "failure %d of 5 must not disable", i+1)
		}

		tok, err := r.RecordFailure(ctx, token, "timeout", false)
		require.NoError(t, err)
		assert.False(t, tok.Enabled, "fifth failure crosses the threshold")
		assert.Equal(t, 5, tok.FailureCount)
	})

	t.Run("permanent failure disables immediately", func(t *testing.T) {
		r := newRegistry(t, tokens.Config{FailureThreshold: 5})
		token := iosToken(0x32)
		_, err := r.Register(ctx, tokens.RegisterInput{UserID: "u1", Token: token, Platform: tokens.PlatformIOS})
		require.NoError(t, err)

		tok, err := r.RecordFailure(ctx, token, "unregistered", true)
		require.NoError(t, err)
		assert.False(t, tok.Enabled)
		assert.Equal(t, 1, tok.FailureCount)
	})

	t.Run("success resets the streak", func(t *testing.T) {
		r := newRegistry(t, tokens.Config{FailureThreshold: 3})
		token := iosToken(0x33)
		_, err := r.Register(ctx, tokens.RegisterInput{UserID: "u1", Token: token, Platform: tokens.PlatformIOS})
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			_, err := r.RecordFailure(ctx, token, "timeout", false)
			require.NoError(t, err)
		}
		require.NoError(t, r.RecordSuccess(ctx, token))

		tok, err := r.Get(ctx, token)
		require.NoError(t, err)
		assert.Zero(t, tok.FailureCount)
		assert.NotNil(t, tok.LastUsedAt)

		// The streak starts over; two more transient failures stay enabled.
		_, err = r.RecordFailure(ctx, token, "timeout", false)
		require.NoError(t, err)
		tok, err = r.RecordFailure(ctx, token, "timeout", false)
		require.NoError(t, err)
		assert.True(t, tok.Enabled)
	})

	t.Run("disabled tokens excluded from sends", func(t *testing.T) {
		r := newRegistry(t, tokens.Config{})
		enabled := iosToken(0x34)
		disabled := iosToken(0x35)
		for _, token := range []string{enabled, disabled} {
			_, err := r.Register(ctx, tokens.RegisterInput{UserID: "u1", Token: token, Platform: tokens.PlatformIOS})
			require.NoError(t, err)
		}
		require.NoError(t, r.Disable(ctx, disabled, "manual"))

		current, err := r.TokensForUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, current, 1)
		assert.Equal(t, enabled, current[0].Token)
	})
}

func TestRegistry_PurgeStale(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := tokens.NewMemoryStore()
	r, err := tokens.NewRegistry(store, tokens.Config{})
	require.NoError(t, err)

	old := time.Now().Add(-120 * 24 * time.Hour)
	require.NoError(t, store.Save(ctx, tokens.PushToken{
		Token: iosToken(0x41), UserID: "u1", Platform: tokens.PlatformIOS,
		Enabled: true, CreatedAt: old, UpdatedAt: old,
	}))
	require.NoError(t, store.Save(ctx, tokens.PushToken{
		Token: iosToken(0x42), UserID: "u1", Platform: tokens.PlatformIOS,
		Enabled: true, CreatedAt: old, UpdatedAt: time.Now(),
	}))

	purged, err := r.PurgeStale(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = r.Get(ctx, iosToken(0x41))
	assert.ErrorIs(t, err, tokens.ErrTokenNotFound)
	_, err = r.Get(ctx, iosToken(0x42))
	assert.NoError(t, err)
}
