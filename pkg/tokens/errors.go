package tokens

import "errors"

var (
	// ErrInvalidToken indicates the token failed platform shape validation.
	ErrInvalidToken = errors.New("invalid push token")

	// ErrTokenNotFound is returned when no registration exists for a token value.
	ErrTokenNotFound = errors.New("push token not found")

	// ErrInvalidConfig indicates the registry configuration is invalid.
	ErrInvalidConfig = errors.New("invalid token registry configuration")
)
