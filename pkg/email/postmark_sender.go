package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// PostmarkSender delivers through Postmark's transactional API.
type PostmarkSender struct {
	client *postmark.Client
}

// PostmarkConfig holds the Postmark credentials.
type PostmarkConfig struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN,required"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN,required"`
}

// NewPostmarkSender creates a Postmark-backed sender. Both tokens are
// required: a missing credential should stop initialization, not surface as
// send failures later.
func NewPostmarkSender(cfg PostmarkConfig) (*PostmarkSender, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: ServerToken is required", ErrInvalidConfig)
	}
	if cfg.AccountToken == "" {
		return nil, fmt.Errorf("%w: AccountToken is required", ErrInvalidConfig)
	}
	return &PostmarkSender{client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken)}, nil
}

func (s *PostmarkSender) Name() string { return "postmark" }

func (s *PostmarkSender) Send(ctx context.Context, msg Message) (string, error) {
	headers := make([]postmark.Header, 0, len(msg.Headers))
	for name, value := range msg.Headers {
		headers = append(headers, postmark.Header{Name: name, Value: value})
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     msg.From,
		ReplyTo:  msg.ReplyTo,
		To:       msg.To,
		Subject:  msg.Subject,
		TextBody: msg.TextBody,
		HTMLBody: msg.HTMLBody,
		Headers:  headers,
		Tag:      msg.Tag,
	})
	if err != nil {
		return "", errors.Join(ErrFailedToSend, err)
	}
	if resp.ErrorCode > 0 {
		return "", &ProviderError{StatusCode: int(resp.ErrorCode), Reason: resp.Message}
	}
	return resp.MessageID, nil
}
