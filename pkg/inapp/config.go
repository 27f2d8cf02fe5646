package inapp

import (
	"fmt"
	"time"
)

const defaultMaxPerUser = 100

// Config holds the in-app adapter configuration.
type Config struct {
	// MaxNotificationsPerUser caps the per-user feed; storing beyond it
	// evicts the oldest items.
	MaxNotificationsPerUser int `env:"INAPP_MAX_PER_USER" envDefault:"100"`

	// RealtimeEnabled gates the live-connection delivery attempt.
	RealtimeEnabled bool `env:"INAPP_REALTIME_ENABLED" envDefault:"true"`

	// ForcePersistence stores every notification even when it was already
	// delivered over a live connection.
	ForcePersistence bool `env:"INAPP_FORCE_PERSISTENCE" envDefault:"false"`

	RatePerMinute   int `env:"INAPP_RATE_PER_MINUTE" envDefault:"3000"`
	UserHourlyLimit int `env:"INAPP_USER_HOURLY_LIMIT" envDefault:"200"`

	// SweepInterval is how often RunSweeper purges expired items.
	SweepInterval time.Duration `env:"INAPP_SWEEP_INTERVAL" envDefault:"1m"`

	RecordTTL time.Duration `env:"INAPP_RECORD_TTL" envDefault:"720h"`
}

func (c Config) validate() error {
	if c.MaxNotificationsPerUser <= 0 {
		return fmt.Errorf("%w: MaxNotificationsPerUser must be positive", ErrInvalidConfig)
	}
	if c.RatePerMinute <= 0 {
		return fmt.Errorf("%w: RatePerMinute must be positive", ErrInvalidConfig)
	}
	if c.UserHourlyLimit <= 0 {
		return fmt.Errorf("%w: UserHourlyLimit must be positive", ErrInvalidConfig)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("%w: SweepInterval must be positive", ErrInvalidConfig)
	}
	return nil
}
