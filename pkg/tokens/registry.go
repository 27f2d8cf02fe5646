package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/notifykit/notifykit/pkg/events"
	"github.com/notifykit/notifykit/pkg/logger"
)

const (
	defaultMaxTokensPerUser = 10
	defaultFailureThreshold = 5
)

// Store is the persistence layer beneath the Registry. UserTokens returns
// every registration for a user ordered oldest first by CreatedAt.
type Store interface {
	Get(ctx context.Context, token string) (*PushToken, error)
	Save(ctx context.Context, t PushToken) error
	Delete(ctx context.Context, token string) error
	UserTokens(ctx context.Context, userID string) ([]PushToken, error)
	StaleTokens(ctx context.Context, unusedSince time.Time, limit int) ([]PushToken, error)
}

// Config tunes the registry's lifecycle rules.
type Config struct {
	MaxTokensPerUser int `env:"PUSH_MAX_TOKENS_PER_USER" envDefault:"10"`
	FailureThreshold int `env:"PUSH_TOKEN_FAILURE_THRESHOLD" envDefault:"5"`
}

// Registry tracks device push tokens and their health: upsert by token
// value, per-user cap with oldest-first eviction, disable on repeated or
// permanent failures, purge after a retention window.
type Registry struct {
	store   Store
	config  Config
	emitter events.Emitter
	logger  *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithEmitter sets the event emitter used for token lifecycle events.
func WithEmitter(e events.Emitter) RegistryOption {
	return func(r *Registry) {
		if e != nil {
			r.emitter = e
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates a token registry over the given store.
func NewRegistry(store Store, cfg Config, opts ...RegistryOption) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if cfg.MaxTokensPerUser <= 0 {
		cfg.MaxTokensPerUser = defaultMaxTokensPerUser
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}

	r := &Registry{
		store:   store,
		config:  cfg,
		emitter: events.Nop{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Register upserts a token. Re-registering an existing token value refreshes
// its owner, platform and timestamps instead of creating a duplicate. When
// the owner is at the per-user cap the oldest token is removed to make room.
func (r *Registry) Register(ctx context.Context, in RegisterInput) (*PushToken, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidToken)
	}
	if err := validateShape(in.Token, in.Platform); err != nil {
		return nil, err
	}

	now := time.Now()

	existing, err := r.store.Get(ctx, in.Token)
	if err == nil {
		existing.UserID = in.UserID
		existing.Platform = in.Platform
		existing.DeviceID = in.DeviceID
		existing.Enabled = true
		existing.FailureCount = 0
		existing.LastFailureReason = ""
		existing.UpdatedAt = now
		if err := r.store.Save(ctx, *existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !errors.Is(err, ErrTokenNotFound) {
		return nil, err
	}

	current, err := r.store.UserTokens(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if len(current) >= r.config.MaxTokensPerUser {
		// Oldest first, so evict from the front until under the cap.
		for i := 0; i <= len(current)-r.config.MaxTokensPerUser; i++ {
			if err := r.store.Delete(ctx, current[i].Token); err != nil {
				return nil, err
			}
			r.logger.LogAttrs(ctx, slog.LevelDebug, "evicted oldest push token at user cap",
				logger.UserID(in.UserID),
			)
		}
	}

	t := PushToken{
		Token:     in.Token,
		Platform:  in.Platform,
		DeviceID:  in.DeviceID,
		UserID:    in.UserID,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Save(ctx, t); err != nil {
		return nil, err
	}

	r.emitter.Emit(ctx, events.Event{
		Name:    events.TokenRegistered,
		Channel: "push",
		Payload: map[string]any{"user_id": in.UserID, "platform": string(in.Platform)},
	})

	return &t, nil
}

// TokensForUser returns the user's enabled tokens, oldest first.
func (r *Registry) TokensForUser(ctx context.Context, userID string) ([]PushToken, error) {
	all, err := r.store.UserTokens(ctx, userID)
	if err != nil {
		return nil, err
	}
	enabled := make([]PushToken, 0, len(all))
	for _, t := range all {
		if t.Enabled {
			enabled = append(enabled, t)
		}
	}
	return enabled, nil
}

// Get returns the registration for a token value.
func (r *Registry) Get(ctx context.Context, token string) (*PushToken, error) {
	return r.store.Get(ctx, token)
}

// RecordFailure notes a send failure for the token. A permanent failure
// disables the token immediately regardless of its failure count; a
// transient failure increments the count and disables only at the threshold.
func (r *Registry) RecordFailure(ctx context.Context, token, reason string, permanent bool) (*PushToken, error) {
	t, err := r.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	t.FailureCount++
	t.LastFailureReason = reason
	t.UpdatedAt = time.Now()

	if permanent || t.FailureCount >= r.config.FailureThreshold {
		t.Enabled = false
	}

	if err := r.store.Save(ctx, *t); err != nil {
		return nil, err
	}

	if !t.Enabled {
		r.emitter.Emit(ctx, events.Event{
			Name:    events.TokenDisabled,
			Channel: "push",
			Payload: map[string]any{"user_id": t.UserID, "reason": reason, "permanent": permanent},
		})
	}

	return t, nil
}

// RecordSuccess touches LastUsedAt and clears the failure streak.
func (r *Registry) RecordSuccess(ctx context.Context, token string) error {
	t, err := r.store.Get(ctx, token)
	if err != nil {
		return err
	}
	now := time.Now()
	t.LastUsedAt = &now
	t.UpdatedAt = now
	t.FailureCount = 0
	t.LastFailureReason = ""
	return r.store.Save(ctx, *t)
}

// Disable turns a token off without deleting it.
func (r *Registry) Disable(ctx context.Context, token, reason string) error {
	t, err := r.store.Get(ctx, token)
	if err != nil {
		return err
	}
	t.Enabled = false
	t.LastFailureReason = reason
	t.UpdatedAt = time.Now()
	if err := r.store.Save(ctx, *t); err != nil {
		return err
	}
	r.emitter.Emit(ctx, events.Event{
		Name:    events.TokenDisabled,
		Channel: "push",
		Payload: map[string]any{"user_id": t.UserID, "reason": reason},
	})
	return nil
}

// Remove deletes a registration entirely.
func (r *Registry) Remove(ctx context.Context, token string) error {
	return r.store.Delete(ctx, token)
}

// PurgeStale removes tokens unused beyond the retention window and returns
// how many were deleted.
func (r *Registry) PurgeStale(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	purged := 0
	for {
		stale, err := r.store.StaleTokens(ctx, cutoff, 100)
		if err != nil {
			return purged, err
		}
		if len(stale) == 0 {
			return purged, nil
		}
		for _, t := range stale {
			if err := r.store.Delete(ctx, t.Token); err != nil {
				return purged, err
			}
			purged++
		}
	}
}
