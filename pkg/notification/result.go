package notification

import "time"

// ErrorCode classifies a delivery failure.
type ErrorCode string

const (
	CodeRateLimited      ErrorCode = "RATE_LIMITED"
	CodeSuppressed       ErrorCode = "SUPPRESSED"
	CodeNoRecipient      ErrorCode = "NO_RECIPIENT"
	CodeInvalidRecipient ErrorCode = "INVALID_RECIPIENT"
	CodeTransportError   ErrorCode = "TRANSPORT_ERROR"
	CodeProviderRejected ErrorCode = "PROVIDER_REJECTED"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeBatchError       ErrorCode = "BATCH_ERROR"
	CodeExpired          ErrorCode = "EXPIRED"
	CodeTemplateError    ErrorCode = "TEMPLATE_ERROR"
)

// DeliveryError describes why an attempt failed. Permanent errors must never
// be retried; Retryable errors may be retried by the caller with backoff.
type DeliveryError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Permanent bool      `json:"permanent"`
	Retryable bool      `json:"retryable"`
}

func (e *DeliveryError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// RateLimited builds the retryable error returned when a window rejects a send.
func RateLimited(msg string) *DeliveryError {
	return &DeliveryError{Code: CodeRateLimited, Message: msg, Retryable: true}
}

// Suppressed builds the non-retryable error returned for suppressed recipients.
func Suppressed(reason string) *DeliveryError {
	return &DeliveryError{Code: CodeSuppressed, Message: "recipient suppressed: " + reason, Permanent: true}
}

// Timeout builds the transient error surfaced when a transport call exceeds
// the adapter's timeout.
func Timeout(msg string) *DeliveryError {
	return &DeliveryError{Code: CodeTimeout, Message: msg, Retryable: true}
}

// DeliveryResult is the outcome of one delivery attempt to one
// recipient-address or token. Channel-specific fields (Segments, Encoding,
// Platform, Accepted/Rejected) are populated only by the owning adapter.
type DeliveryResult struct {
	Success           bool           `json:"success"`
	Channel           string         `json:"channel"`
	NotificationID    string         `json:"notification_id"`
	Recipient         string         `json:"recipient,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
	Attempts          int            `json:"attempts"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Error             *DeliveryError `json:"error,omitempty"`

	// Email superset; push bulk results reuse these for per-token detail.
	Accepted []string `json:"accepted,omitempty"`
	Rejected []string `json:"rejected,omitempty"`

	// SMS superset.
	Segments int    `json:"segments,omitempty"`
	Encoding string `json:"encoding,omitempty"`

	// Push superset.
	Platform string `json:"platform,omitempty"`
}

// Failure builds a failed result for the given notification and error.
func Failure(channel string, n Notification, derr *DeliveryError) DeliveryResult {
	return DeliveryResult{
		Channel:        channel,
		NotificationID: n.ID,
		Timestamp:      time.Now(),
		Attempts:       1,
		Error:          derr,
	}
}
