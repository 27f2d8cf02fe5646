package sms

import (
	"fmt"
	"time"
)

// Config holds the SMS adapter configuration. Global rate windows stack:
// a send must pass the minute, hour and day limits, then the per-recipient
// daily limit.
type Config struct {
	// DefaultCountryCode is prepended to numbers dialed without an
	// international prefix. Digits only, no leading +.
	DefaultCountryCode string `env:"SMS_DEFAULT_COUNTRY_CODE" envDefault:"1"`

	// Signature is appended after the compliance footer, so it is always
	// the last line of the message.
	Signature string `env:"SMS_SIGNATURE"`

	// ComplianceFooter appends an opt-out instruction unless the body
	// already mentions one.
	ComplianceFooter bool `env:"SMS_COMPLIANCE_FOOTER" envDefault:"true"`

	RatePerMinute       int `env:"SMS_RATE_PER_MINUTE" envDefault:"60"`
	RatePerHour         int `env:"SMS_RATE_PER_HOUR" envDefault:"1000"`
	RatePerDay          int `env:"SMS_RATE_PER_DAY" envDefault:"10000"`
	RecipientDailyLimit int `env:"SMS_RECIPIENT_DAILY_LIMIT" envDefault:"10"`

	// PhoneCacheSize bounds the normalization memoization cache.
	PhoneCacheSize int `env:"SMS_PHONE_CACHE_SIZE" envDefault:"4096"`

	SendTimeout time.Duration `env:"SMS_SEND_TIMEOUT" envDefault:"10s"`
	RecordTTL   time.Duration `env:"SMS_RECORD_TTL" envDefault:"720h"`
}

func (c Config) validate() error {
	for _, d := range c.DefaultCountryCode {
		if d < '0' || d > '9' {
			return fmt.Errorf("%w: DefaultCountryCode must contain digits only", ErrInvalidConfig)
		}
	}
	if c.RatePerMinute <= 0 || c.RatePerHour <= 0 || c.RatePerDay <= 0 {
		return fmt.Errorf("%w: global rate limits must be positive", ErrInvalidConfig)
	}
	if c.RecipientDailyLimit <= 0 {
		return fmt.Errorf("%w: RecipientDailyLimit must be positive", ErrInvalidConfig)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("%w: SendTimeout must be positive", ErrInvalidConfig)
	}
	return nil
}
