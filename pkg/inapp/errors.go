package inapp

import "errors"

var (
	// ErrInvalidConfig indicates invalid or missing adapter configuration.
	ErrInvalidConfig = errors.New("invalid inapp configuration")
	// ErrNotificationNotFound indicates the notification does not exist in
	// the user's feed.
	ErrNotificationNotFound = errors.New("inapp notification not found")
	// ErrNotDelivered indicates neither the realtime nor the persistence
	// path accepted the notification.
	ErrNotDelivered = errors.New("inapp notification not delivered")
)
