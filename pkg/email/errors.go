package email

import "errors"

var (
	// ErrInvalidConfig indicates the adapter or provider configuration is invalid.
	ErrInvalidConfig = errors.New("invalid email configuration")

	// ErrFailedToSend wraps transport-level provider failures.
	ErrFailedToSend = errors.New("failed to send email")
)
