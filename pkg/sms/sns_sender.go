package sms

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSSender delivers through Amazon SNS direct-to-phone publishing.
type SNSSender struct {
	client *sns.Client
}

// NewSNSSender creates an SNS-backed sender using the default AWS credential
// chain for the given region.
func NewSNSSender(ctx context.Context, region string) (*SNSSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	return &SNSSender{client: sns.NewFromConfig(cfg)}, nil
}

// NewSNSSenderFromClient wraps an existing SNS client, mainly for tests.
func NewSNSSenderFromClient(client *sns.Client) *SNSSender {
	return &SNSSender{client: client}
}

func (s *SNSSender) Name() string { return "sns" }

// Send publishes directly to the phone number. Messages go out as
// Transactional so carriers prioritize them over promotional traffic.
func (s *SNSSender) Send(ctx context.Context, msg Message) (string, error) {
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(msg.To),
		Message:     aws.String(msg.Body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	})
	if err != nil {
		return "", errors.Join(ErrFailedToSend, err)
	}
	return aws.ToString(out.MessageId), nil
}
