package email

import (
	"context"
	"fmt"
)

// Message is the fully prepared email handed to a provider.
type Message struct {
	From     string
	ReplyTo  string
	To       string
	Subject  string
	TextBody string
	HTMLBody string
	Headers  map[string]string
	Tag      string
}

// Sender is the contract a provider adapter must satisfy: deliver the
// message and return the provider's message id, or fail with an error the
// adapter can classify. Providers do not retry.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) (messageID string, err error)
}

// ProviderError carries the provider's rejection so the adapter can decide
// whether the failure is permanent.
type ProviderError struct {
	StatusCode int
	Reason     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider rejected message: %d %s", e.StatusCode, e.Reason)
}
