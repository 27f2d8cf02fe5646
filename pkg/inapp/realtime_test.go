package inapp_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifykit/notifykit/pkg/inapp"
)

func TestHub_EmitToUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("delivers to every subscriber", func(t *testing.T) {
		hub := inapp.NewHub()
		defer hub.Close()

		sub1 := hub.Subscribe("u1")
		sub2 := hub.Subscribe("u1")

		require.True(t, hub.IsUserConnected(ctx, "u1"))
		require.NoError(t, hub.EmitToUser(ctx, "u1", inapp.Item{ID: "n1"}))

		for _, sub := range []*inapp.HubSubscription{sub1, sub2} {
			select {
			case item := <-sub.Items():
				assert.Equal(t, "n1", item.ID)
			case <-time.After(time.Second):
				t.Fatal("subscriber did not receive the item")
			}
		}
	})

	t.Run("no connection errors", func(t *testing.T) {
		hub := inapp.NewHub()
		defer hub.Close()

		assert.False(t, hub.IsUserConnected(ctx, "u1"))
		assert.ErrorIs(t, hub.EmitToUser(ctx, "u1", inapp.Item{ID: "n1"}), inapp.ErrUserNotConnected)
	})

	t.Run("subscribers are per user", func(t *testing.T) {
		hub := inapp.NewHub()
		defer hub.Close()

		sub := hub.Subscribe("u2")
		require.NoError(t, hub.EmitToUser(ctx, "u2", inapp.Item{ID: "n1"}))
		assert.ErrorIs(t, hub.EmitToUser(ctx, "u1", inapp.Item{ID: "n2"}), inapp.ErrUserNotConnected)

		item := <-sub.Items()
		assert.Equal(t, "n1", item.ID)
	})

	t.Run("full buffer drops instead of blocking", func(t *testing.T) {
		hub := inapp.NewHub(inapp.WithSubscriberBuffer(1))
		defer hub.Close()

		sub := hub.Subscribe("u1")

		require.NoError(t, hub.EmitToUser(ctx, "u1", inapp.Item{ID: "n1"}))
		// The buffer is full: this emit has no one left to deliver to.
		assert.ErrorIs(t, hub.EmitToUser(ctx, "u1", inapp.Item{ID: "n2"}), inapp.ErrUserNotConnected)

		item := <-sub.Items()
		assert.Equal(t, "n1", item.ID)
	})
}

func TestHub_Close(t *testing.T) {
	t.Parallel()

	t.Run("subscription close detaches", func(t *testing.T) {
		hub := inapp.NewHub()
		defer hub.Close()

		sub := hub.Subscribe("u1")
		sub.Close()
		sub.Close() // idempotent

		assert.False(t, hub.IsUserConnected(context.Background(), "u1"))
		_, ok := <-sub.Items()
		assert.False(t, ok)
	})

	t.Run("hub close detaches everyone", func(t *testing.T) {
		hub := inapp.NewHub()
		sub := hub.Subscribe("u1")

		hub.Close()
		hub.Close() // idempotent

		_, ok := <-sub.Items()
		assert.False(t, ok)
		assert.Nil(t, hub.Subscribe("u2"), "closed hub must not accept subscriptions")
	})
}

func TestHub_ConcurrentEmit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hub := inapp.NewHub(inapp.WithSubscriberBuffer(64))
	defer hub.Close()

	sub := hub.Subscribe("u1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 32; i++ {
			_ = hub.EmitToUser(ctx, "u1", inapp.Item{ID: strconv.Itoa(i)})
		}
	}()

	received := 0
	timeout := time.After(2 * time.Second)
	for received < 32 {
		select {
		case <-sub.Items():
			received++
		case <-timeout:
			t.Fatalf("received %d of 32 items", received)
		}
	}
	<-done
}
