package email

import (
	"context"
	"errors"
	"strings"
)

// Substrings that identify a mailbox-level permanent failure in provider
// rejection text, matched case-insensitively.
var permanentReasonSubstrings = []string{
	"mailbox unavailable",
	"mailbox does not exist",
	"does not exist",
	"exceeded storage",
	"user unknown",
	"inactive recipient",
	"address blocked",
	"hard bounce",
}

// isPermanentFailure reports whether a provider error belongs to the
// known-permanent SMTP class (550-554 style mailbox failures). Everything
// else is treated as transient. Postmark's 406 (inactive recipient) maps to
// the same class: the address has hard-bounced before.
func isPermanentFailure(err error) bool {
	var perr *ProviderError
	if !errors.As(err, &perr) {
		return false
	}
	if perr.StatusCode >= 550 && perr.StatusCode <= 554 {
		return true
	}
	if perr.StatusCode == 406 {
		return true
	}
	reason := strings.ToLower(perr.Reason)
	for _, s := range permanentReasonSubstrings {
		if strings.Contains(reason, s) {
			return true
		}
	}
	return false
}

// isTimeout reports whether the send failed because the adapter's transport
// timeout elapsed.
func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}
