package push

import (
	"fmt"
	"time"
)

// Config holds the push adapter configuration. Rate limiting and suppression
// key on the user id rather than a device address: a user who opted out of
// push stays opted out across re-registered devices.
type Config struct {
	RatePerMinute  int `env:"PUSH_RATE_PER_MINUTE" envDefault:"600"`
	UserDailyLimit int `env:"PUSH_USER_DAILY_LIMIT" envDefault:"100"`

	// BatchSize caps how many tokens go to the provider in one transport
	// call. Zero means the default of 500 (the FCM multicast ceiling).
	BatchSize int `env:"PUSH_BATCH_SIZE" envDefault:"500"`

	// DefaultSound applies when the notification metadata carries none.
	DefaultSound string `env:"PUSH_DEFAULT_SOUND" envDefault:"default"`

	SendTimeout time.Duration `env:"PUSH_SEND_TIMEOUT" envDefault:"10s"`
	RecordTTL   time.Duration `env:"PUSH_RECORD_TTL" envDefault:"720h"`
}

func (c Config) validate() error {
	if c.RatePerMinute <= 0 {
		return fmt.Errorf("%w: RatePerMinute must be positive", ErrInvalidConfig)
	}
	if c.UserDailyLimit <= 0 {
		return fmt.Errorf("%w: UserDailyLimit must be positive", ErrInvalidConfig)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: BatchSize must not be negative", ErrInvalidConfig)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("%w: SendTimeout must be positive", ErrInvalidConfig)
	}
	return nil
}
