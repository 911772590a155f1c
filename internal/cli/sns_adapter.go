package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// snsPublisherAdapter wraps the AWS SNS client to implement sms.SNSPublisher.
type snsPublisherAdapter struct {
	client   *sns.Client
	senderID string
}

const snsCredentialsTimeout = 5 * time.Second

// newSNSPublisher loads the default AWS config and resolves credentials
// eagerly. It fails when no credentials are available.
func newSNSPublisher(ctx context.Context, region, senderID string) (*snsPublisherAdapter, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.Credentials == nil {
		return nil, errors.New("no AWS credentials provider")
	}
	credCtx, cancel := context.WithTimeout(ctx, snsCredentialsTimeout)
	defer cancel()
	if _, err := cfg.Credentials.Retrieve(credCtx); err != nil {
		return nil, fmt.Errorf("resolving AWS credentials: %w", err)
	}
	return &snsPublisherAdapter{client: sns.NewFromConfig(cfg), senderID: senderID}, nil
}

func (a *snsPublisherAdapter) Publish(ctx context.Context, phoneNumber, message string) (string, error) {
	out, err := a.client.Publish(ctx, a.publishInput(phoneNumber, message))
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

// publishInput sends as Transactional, with the sender id when configured.
func (a *snsPublisherAdapter) publishInput(phoneNumber, message string) *sns.PublishInput {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if a.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(a.senderID),
		}
	}
	return &sns.PublishInput{
		PhoneNumber:       aws.String(phoneNumber),
		Message:           aws.String(message),
		MessageAttributes: attrs,
	}
}
