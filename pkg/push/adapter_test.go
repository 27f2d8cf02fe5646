package push_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifykit/notifykit/pkg/notification"
	"github.com/notifykit/notifykit/pkg/push"
	"github.com/notifykit/notifykit/pkg/suppression"
	"github.com/notifykit/notifykit/pkg/tokens"
)

// fakeSender scripts per-token outcomes by token value and records every
// batch it receives.
type fakeSender struct {
	mu       sync.Mutex
	batches  [][]string
	payloads []push.Payload
	outcomes map[string]push.TokenResult
	err      error
}

func newFakeSender() *fakeSender {
	return &fakeSender{outcomes: make(map[string]push.TokenResult)}
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Send(ctx context.Context, platform tokens.Platform, tokenValues []string, payload push.Payload) ([]push.TokenResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, tokenValues)
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return nil, f.err
	}
	results := make([]push.TokenResult, 0, len(tokenValues))
	for _, tv := range tokenValues {
		if out, ok := f.outcomes[tv]; ok {
			out.Token = tv
			results = append(results, out)
			continue
		}
		results = append(results, push.TokenResult{Token: tv, MessageID: "push-" + tv[:6]})
	}
	return results, nil
}

func (f *fakeSender) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func baseConfig() push.Config {
	return push.Config{
		RatePerMinute:  1000,
		UserDailyLimit: 100,
		DefaultSound:   "default",
		SendTimeout:    5 * time.Second,
		RecordTTL:      time.Hour,
	}
}

func iosToken(seed byte) string {
	return strings.Repeat(string([]byte{'a' + seed%6, '0' + seed%10}), 32)
}

func androidToken(seed byte) string {
	return strings.Repeat(string([]byte{'A' + seed%6, '0' + seed%10}), 75)
}

func newRegistry(t *testing.T) *tokens.Registry {
	t.Helper()
	reg, err := tokens.NewRegistry(tokens.NewMemoryStore(), tokens.Config{})
	require.NoError(t, err)
	return reg
}

func registerToken(t *testing.T, reg *tokens.Registry, userID, token string, platform tokens.Platform) {
	t.Helper()
	_, err := reg.Register(context.Background(), tokens.RegisterInput{
		UserID: userID, Token: token, Platform: platform,
	})
	require.NoError(t, err)
}

func pushNotification(id, userID string) notification.Notification {
	return notification.Notification{
		ID:      id,
		UserID:  userID,
		Type:    "alert",
		Title:   "Alert",
		Message: "Something happened",
	}
}

func TestAdapter_Send(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("fans out one result per enabled token", func(t *testing.T) {
		reg := newRegistry(t)
		registerToken(t, reg, "u1", iosToken(1), tokens.PlatformIOS)
		registerToken(t, reg, "u1", iosToken(2), tokens.PlatformIOS)
		registerToken(t, reg, "u1", androidToken(1), tokens.PlatformAndroid)

		sender := newFakeSender()
		adapter, err := push.New(baseConfig(), sender, reg)
		require.NoError(t, err)

		results, err := adapter.Send(ctx, pushNotification("n1", "u1"), nil)
		require.NoError(t, err)
		require.Len(t, results, 3)

		platforms := map[string]int{}
		for _, res := range results {
			assert.True(t, res.Success)
			assert.Equal(t, "push", res.Channel)
			assert.NotEmpty(t, res.Platform)
			platforms[res.Platform]++
		}
		assert.Equal(t, 2, platforms["ios"])
		assert.Equal(t, 1, platforms["android"])
	})

	t.Run("no enabled tokens yields a single permanent failure", func(t *testing.T) {
		reg := newRegistry(t)
		sender := newFakeSender()
		adapter, err := push.New(baseConfig(), sender, reg)
		require.NoError(t, err)

		results, err := adapter.Send(ctx, pushNotification("n1", "u-nobody"), nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.NotNil(t, results[0].Error)
		assert.Equal(t, notification.CodeNoRecipient, results[0].Error.Code)
		assert.True(t, results[0].Error.Permanent)
		assert.Zero(t, sender.batchCount())
	})

	t.Run("payload uses default sound", func(t *testing.T) {
		reg := newRegistry(t)
		registerToken(t, reg, "u1", iosToken(1), tokens.PlatformIOS)

		sender := newFakeSender()
		adapter, err := push.New(baseConfig(), sender, reg)
		require.NoError(t, err)

		_, err = adapter.Send(ctx, pushNotification("n1", "u1"), nil)
		require.NoError(t, err)

		require.Len(t, sender.payloads, 1)
		assert.Equal(t, "default", sender.payloads[0].Sound)
		assert.Equal(t, "Alert", sender.payloads[0].Title)
	})
}

func TestAdapter_TokenLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("dead token disabled immediately", func(t *testing.T) {
		reg := newRegistry(t)
		dead := iosToken(1)
		registerToken(t, reg, "u1", dead, tokens.PlatformIOS)

		sender := newFakeSender()
		sender.outcomes[dead] = push.TokenResult{Err: errors.New("unregistered"), ShouldRemove: true}
		adapter, err := push.New(baseConfig(), sender, reg)
		require.NoError(t, err)

		results, err := adapter.Send(ctx, pushNotification("n1", "u1"), nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.NotNil(t, results[0].Error)
		assert.Equal(t, notification.CodeProviderRejected, results[0].Error.Code)
		assert.True(t, results[0].Error.Permanent)

		stored, err := reg.Get(ctx, dead)
		require.NoError(t, err)
		assert.False(t, stored.Enabled, "provider-reported dead token must be disabled")

		// Disabled tokens drop out of the next fan-out entirely.
		results, err = adapter.Send(ctx, pushNotification("n2", "u1"), nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, notification.CodeNoRecipient, results[0].Error.Code)
	})

	t.Run("transient failure counts toward the threshold", func(t *testing.T) {
		reg := newRegistry(t)
		flaky := iosToken(2)
		registerToken(t, reg, "u1", flaky, tokens.PlatformIOS)

		sender := newFakeSender()
		sender.outcomes[flaky] = push.TokenResult{Err: errors.New("service unavailable")}
		adapter, err := push.New(baseConfig(), sender, reg)
		require.NoError(t, err)

		results, err := adapter.Send(ctx, pushNotification("n1", "u1"), nil)
		require.NoError(t, err)
		require.NotNil(t, results[0].Error)
		assert.Equal(t, notification.CodeTransportError, results[0].Error.Code)
		assert.True(t, results[0].Error.Retryable)

		stored, err := reg.Get(ctx, flaky)
		require.NoError(t, err)
		assert.True(t, stored.Enabled, "one transient failure must not disable")
		assert.Equal(t, 1, stored.FailureCount)
	})

	t.Run("success clears the failure streak", func(t *testing.T) {
		reg := newRegistry(t)
		tok := iosToken(3)
		registerToken(t, reg, "u1", tok, tokens.PlatformIOS)

		_, err := reg.RecordFailure(ctx, tok, "blip", false)
		require.NoError(t, err)

		sender := newFakeSender()
		adapter, err := push.New(baseConfig(), sender, reg)
		require.NoError(t, err)

		results, err := adapter.Send(ctx, pushNotification("n1", "u1"), nil)
		require.NoError(t, err)
		require.True(t, results[0].Success)

		stored, err := reg.Get(ctx, tok)
		require.NoError(t, err)
		assert.Zero(t, stored.FailureCount)
		assert.NotNil(t, stored.LastUsedAt)
	})

	t.Run("whole-batch error fails every token retryably", func(t *testing.T) {
		reg := newRegistry(t)
		registerToken(t, reg, "u1", iosToken(4), tokens.PlatformIOS)
		registerToken(t, reg, "u1", iosToken(5), tokens.PlatformIOS)

		sender := newFakeSender()
		sender.err = errors.New("fcm unreachable")
		adapter, err := push.New(baseConfig(), sender, reg)
		require.NoError(t, err)

		results, err := adapter.Send(ctx, pushNotification("n1", "u1"), nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, res := range results {
			require.NotNil(t, res.Error)
			assert.Equal(t, notification.CodeTransportError, res.Error.Code)
			assert.True(t, res.Error.Retryable)
		}
	})
}

func TestAdapter_Suppression(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	reg := newRegistry(t)
	registerToken(t, reg, "u1", iosToken(1), tokens.PlatformIOS)

	sender := newFakeSender()
	supp := suppression.NewMemoryStore()
	adapter, err := push.New(baseConfig(), sender, reg, push.WithSuppressionStore(supp))
	require.NoError(t, err)

	// Suppression keys on the user, not a device token.
	require.NoError(t, supp.Suppress(ctx, suppression.Entry{
		Channel: "push", RecipientKey: "u1", Reason: suppression.ReasonUnsubscribed,
	}))

	results, err := adapter.Send(ctx, pushNotification("n1", "u1"), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Error)
	assert.Equal(t, notification.CodeSuppressed, results[0].Error.Code)
	assert.Zero(t, sender.batchCount())
}

func TestAdapter_UserDailyLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	cfg := baseConfig()
	cfg.UserDailyLimit = 2

	reg := newRegistry(t)
	registerToken(t, reg, "u1", iosToken(1), tokens.PlatformIOS)
	registerToken(t, reg, "u2", iosToken(2), tokens.PlatformIOS)

	sender := newFakeSender()
	adapter, err := push.New(cfg, sender, reg)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		results, err := adapter.Send(ctx, pushNotification("n1", "u1"), nil)
		require.NoError(t, err)
		require.True(t, results[0].Success)
	}

	results, err := adapter.Send(ctx, pushNotification("n3", "u1"), nil)
	require.NoError(t, err)
	require.NotNil(t, results[0].Error)
	assert.Equal(t, notification.CodeRateLimited, results[0].Error.Code)

	// The limit is per user; another user is unaffected.
	results, err = adapter.Send(ctx, pushNotification("n4", "u2"), nil)
	require.NoError(t, err)
	assert.True(t, results[0].Success)
}

func TestAdapter_SendBulk(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("one aggregated result per notification", func(t *testing.T) {
		reg := newRegistry(t)
		registerToken(t, reg, "u1", iosToken(1), tokens.PlatformIOS)
		registerToken(t, reg, "u1", iosToken(2), tokens.PlatformIOS)
		registerToken(t, reg, "u1", androidToken(1), tokens.PlatformAndroid)

		sender := newFakeSender()
		adapter, err := push.New(baseConfig(), sender, reg)
		require.NoError(t, err)

		results, err := adapter.SendBulk(ctx, []notification.Notification{pushNotification("n1", "u1")}, notification.BulkOptions{})
		require.NoError(t, err)
		require.Len(t, results, 1, "a three-device user still yields one result")

		assert.True(t, results[0].Success)
		assert.Equal(t, "u1", results[0].Recipient)
		assert.Len(t, results[0].Accepted, 3, "per-token detail lives in Accepted")
		assert.Empty(t, results[0].Rejected)
		assert.Nil(t, results[0].Error)
	})

	t.Run("keeps input order with mixed outcomes", func(t *testing.T) {
		reg := newRegistry(t)
		registerToken(t, reg, "u1", iosToken(1), tokens.PlatformIOS)
		registerToken(t, reg, "u1", iosToken(2), tokens.PlatformIOS)

		sender := newFakeSender()
		adapter, err := push.New(baseConfig(), sender, reg)
		require.NoError(t, err)

		ns := []notification.Notification{
			pushNotification("n1", "u1"),
			pushNotification("n2", "u-nobody"),
		}
		results, err := adapter.SendBulk(ctx, ns, notification.BulkOptions{})
		require.NoError(t, err)
		require.Len(t, results, len(ns))

		assert.Equal(t, "n1", results[0].NotificationID)
		assert.True(t, results[0].Success)
		assert.Len(t, results[0].Accepted, 2)

		assert.Equal(t, "n2", results[1].NotificationID)
		require.NotNil(t, results[1].Error)
		assert.Equal(t, notification.CodeNoRecipient, results[1].Error.Code)
	})

	t.Run("partial token failure still counts as delivered", func(t *testing.T) {
		reg := newRegistry(t)
		good := iosToken(1)
		bad := iosToken(2)
		registerToken(t, reg, "u1", good, tokens.PlatformIOS)
		registerToken(t, reg, "u1", bad, tokens.PlatformIOS)

		sender := newFakeSender()
		sender.outcomes[bad] = push.TokenResult{Err: errors.New("service unavailable")}
		adapter, err := push.New(baseConfig(), sender, reg)
		require.NoError(t, err)

		results, err := adapter.SendBulk(ctx, []notification.Notification{pushNotification("n1", "u1")}, notification.BulkOptions{})
		require.NoError(t, err)
		require.Len(t, results, 1)

		assert.True(t, results[0].Success)
		assert.Equal(t, []string{good}, results[0].Accepted)
		assert.Equal(t, []string{bad}, results[0].Rejected)
		assert.Nil(t, results[0].Error)
	})
}

func TestAdapter_BatchSize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	cfg := baseConfig()
	cfg.BatchSize = 2

	reg := newRegistry(t)
	for seed := byte(1); seed <= 5; seed++ {
		registerToken(t, reg, "u1", iosToken(seed), tokens.PlatformIOS)
	}

	sender := newFakeSender()
	adapter, err := push.New(cfg, sender, reg)
	require.NoError(t, err)

	results, err := adapter.Send(ctx, pushNotification("n1", "u1"), nil)
	require.NoError(t, err)
	require.Len(t, results, 5)

	total := 0
	for _, batch := range sender.batches {
		assert.LessOrEqual(t, len(batch), 2, "provider calls must respect the configured batch size")
		total += len(batch)
	}
	assert.Equal(t, 5, total)
	assert.Equal(t, 3, sender.batchCount())
}

func TestAdapter_SendMulticast(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	reg := newRegistry(t)
	registerToken(t, reg, "u1", iosToken(1), tokens.PlatformIOS)
	registerToken(t, reg, "u1", androidToken(1), tokens.PlatformAndroid)
	registerToken(t, reg, "u2", iosToken(2), tokens.PlatformIOS)

	sender := newFakeSender()
	adapter, err := push.New(baseConfig(), sender, reg)
	require.NoError(t, err)

	results, err := adapter.SendMulticast(ctx, []string{"u1", "u2", "u-nobody"}, pushNotification("n1", ""), notification.BulkOptions{})
	require.NoError(t, err)
	require.Len(t, results, 3, "one aggregated result per target user")

	assert.True(t, results[0].Success)
	assert.Equal(t, "u1", results[0].Recipient)
	assert.Len(t, results[0].Accepted, 2, "both of u1's devices fold into one result")
	assert.True(t, results[1].Success)
	assert.Equal(t, "u2", results[1].Recipient)
	require.NotNil(t, results[2].Error)
	assert.Equal(t, notification.CodeNoRecipient, results[2].Error.Code)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)

	t.Run("requires sender", func(t *testing.T) {
		_, err := push.New(baseConfig(), nil, reg)
		assert.ErrorIs(t, err, push.ErrInvalidConfig)
	})

	t.Run("requires registry", func(t *testing.T) {
		_, err := push.New(baseConfig(), newFakeSender(), nil)
		assert.ErrorIs(t, err, push.ErrInvalidConfig)
	})

	t.Run("rejects zero rate", func(t *testing.T) {
		cfg := baseConfig()
		cfg.RatePerMinute = 0
		_, err := push.New(cfg, newFakeSender(), reg)
		assert.ErrorIs(t, err, push.ErrInvalidConfig)
	})
}
