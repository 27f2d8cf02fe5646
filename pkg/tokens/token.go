package tokens

import "time"

// Platform identifies the push platform a token belongs to.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// PushToken is one device registration. Tokens are disabled, not deleted,
// when they fail repeatedly or the provider reports them invalid; disabled
// tokens are excluded from every future send.
type PushToken struct {
	Token             string     `json:"token"`
	Platform          Platform   `json:"platform"`
	DeviceID          string     `json:"device_id,omitempty"`
	UserID            string     `json:"user_id"`
	Enabled           bool       `json:"enabled"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	LastUsedAt        *time.Time `json:"last_used_at,omitempty"`
	FailureCount      int        `json:"failure_count"`
	LastFailureReason string     `json:"last_failure_reason,omitempty"`
}

// RegisterInput is the payload for Registry.Register.
type RegisterInput struct {
	UserID   string
	Token    string
	Platform Platform
	DeviceID string
}
