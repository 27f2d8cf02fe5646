package sms

import "errors"

var (
	// ErrInvalidConfig indicates invalid or missing adapter configuration.
	ErrInvalidConfig = errors.New("invalid sms configuration")
	// ErrInvalidPhoneNumber indicates the recipient number could not be
	// normalized to a plausible international number.
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
	// ErrFailedToSend indicates the provider did not accept the message.
	ErrFailedToSend = errors.New("failed to send sms")
)
