package push

import "errors"

var (
	// ErrInvalidConfig indicates invalid or missing adapter configuration.
	ErrInvalidConfig = errors.New("invalid push configuration")
	// ErrFailedToSend indicates the provider did not accept the batch.
	ErrFailedToSend = errors.New("failed to send push notification")
)
