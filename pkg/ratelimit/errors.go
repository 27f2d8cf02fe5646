package ratelimit

import "errors"

var (
	// ErrInvalidConfig indicates the provided window configuration is invalid.
	ErrInvalidConfig = errors.New("invalid rate limit configuration")

	// ErrStoreUnavailable indicates the counter backend is unavailable.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)
