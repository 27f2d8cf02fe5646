package email

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESSender delivers through Amazon SES.
type SESSender struct {
	client *ses.Client
}

// NewSESSender creates an SES-backed sender using the default AWS credential
// chain for the given region.
func NewSESSender(ctx context.Context, region string) (*SESSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	return &SESSender{client: ses.NewFromConfig(cfg)}, nil
}

// NewSESSenderFromClient wraps an existing SES client, mainly for tests.
func NewSESSenderFromClient(client *ses.Client) *SESSender {
	return &SESSender{client: client}
}

func (s *SESSender) Name() string { return "ses" }

// Send uses the simple SES API. Custom headers require the raw MIME API and
// are carried by the Postmark sender instead; SES deployments identify the
// notification through the returned provider message id.
func (s *SESSender) Send(ctx context.Context, msg Message) (string, error) {
	body := &types.Body{
		Text: &types.Content{Data: aws.String(msg.TextBody)},
	}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTMLBody)}
	}

	input := &ses.SendEmailInput{
		Source: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body:    body,
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", errors.Join(ErrFailedToSend, err)
	}
	return aws.ToString(out.MessageId), nil
}
