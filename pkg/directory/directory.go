package directory

import (
	"context"
	"errors"
)

// ErrNoAddress is returned when a user has no address for the channel.
var ErrNoAddress = errors.New("no address for user on channel")

// Directory resolves a user id to a channel-specific address: an email
// address for the email channel, a phone number for sms. Push and in-app
// resolve recipients through their own registries instead. The directory is
// an external collaborator; this package only pins the contract the engine
// requires from it.
type Directory interface {
	ResolveAddress(ctx context.Context, userID, channel string) (string, error)
}

// Static is a map-backed directory for tests and development.
type Static struct {
	addresses map[string]map[string]string // channel -> userID -> address
}

// NewStatic creates a static directory from channel -> user -> address maps.
func NewStatic(addresses map[string]map[string]string) *Static {
	if addresses == nil {
		addresses = make(map[string]map[string]string)
	}
	return &Static{addresses: addresses}
}

func (s *Static) ResolveAddress(ctx context.Context, userID, channel string) (string, error) {
	addr, ok := s.addresses[channel][userID]
	if !ok || addr == "" {
		return "", ErrNoAddress
	}
	return addr, nil
}
