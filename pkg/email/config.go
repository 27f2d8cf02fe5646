package email

import (
	"fmt"
	"regexp"
	"time"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Config holds the email adapter configuration. Tracking flags are
// independent: each of opens, clicks and unsubscribe can be toggled on its
// own, and all of them apply only when a message has an HTML body.
type Config struct {
	SenderEmail  string `env:"SENDER_EMAIL,required"`
	ReplyToEmail string `env:"REPLY_TO_EMAIL"`

	RatePerSecond       int `env:"EMAIL_RATE_PER_SECOND" envDefault:"10"`
	RecipientDailyLimit int `env:"EMAIL_RECIPIENT_DAILY_LIMIT" envDefault:"50"`

	TrackOpens       bool   `env:"EMAIL_TRACK_OPENS" envDefault:"false"`
	TrackClicks      bool   `env:"EMAIL_TRACK_CLICKS" envDefault:"false"`
	TrackUnsubscribe bool   `env:"EMAIL_TRACK_UNSUBSCRIBE" envDefault:"false"`
	TrackingBaseURL  string `env:"EMAIL_TRACKING_BASE_URL"`

	DefaultHeaders map[string]string `env:"-"`

	SendTimeout time.Duration `env:"EMAIL_SEND_TIMEOUT" envDefault:"10s"`
	RecordTTL   time.Duration `env:"EMAIL_RECORD_TTL" envDefault:"720h"`
}

func (c Config) validate() error {
	if c.SenderEmail == "" {
		return fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(c.SenderEmail) {
		return fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if c.ReplyToEmail != "" && !emailRegex.MatchString(c.ReplyToEmail) {
		return fmt.Errorf("%w: ReplyToEmail must be a valid email address", ErrInvalidConfig)
	}
	if (c.TrackOpens || c.TrackClicks || c.TrackUnsubscribe) && c.TrackingBaseURL == "" {
		return fmt.Errorf("%w: TrackingBaseURL is required when tracking is enabled", ErrInvalidConfig)
	}
	if c.RatePerSecond <= 0 {
		return fmt.Errorf("%w: RatePerSecond must be positive", ErrInvalidConfig)
	}
	if c.RecipientDailyLimit <= 0 {
		return fmt.Errorf("%w: RecipientDailyLimit must be positive", ErrInvalidConfig)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("%w: SendTimeout must be positive", ErrInvalidConfig)
	}
	return nil
}
