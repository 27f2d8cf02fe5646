package sms

import "context"

// Message is the provider-agnostic SMS payload after normalization and
// footer assembly.
type Message struct {
	To   string
	Body string
}

// Sender is the SMS transport. Implementations return the provider message
// ID on acceptance.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) (string, error)
}

// ProviderError is a rejection reported by the SMS provider rather than the
// transport layer.
type ProviderError struct {
	Code   string
	Reason string
}

func (e *ProviderError) Error() string {
	return "sms provider rejected message: " + e.Code + ": " + e.Reason
}
