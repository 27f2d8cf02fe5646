package push

import (
	"context"

	"github.com/notifykit/notifykit/pkg/tokens"
)

// TokenResult is the per-token outcome of a provider batch. ShouldRemove
// marks tokens the provider reported as permanently dead (unregistered,
// expired, invalid); the adapter disables those immediately instead of
// counting another transient failure.
type TokenResult struct {
	Token        string
	MessageID    string
	Err          error
	ShouldRemove bool
}

// Sender is the push transport for one or more platforms. A call covers a
// single platform's token batch; the result slice must have one entry per
// input token, in order.
type Sender interface {
	Name() string
	Send(ctx context.Context, platform tokens.Platform, tokenValues []string, payload Payload) ([]TokenResult, error)
}
