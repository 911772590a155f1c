package sms

import (
	"context"
)

// SNSPublisher abstracts the AWS SNS Publish call for testability.
type SNSPublisher interface {
	Publish(ctx context.Context, phoneNumber, message string) (messageID string, err error)
}

// SNSProvider sends SMS via AWS SNS. SNS does not report a per-message price.
type SNSProvider struct {
	publisher SNSPublisher
}

// NewSNSProvider creates an SNSProvider. A nil publisher (AWS config could
// not be loaded) leaves the provider unconfigured.
func NewSNSProvider(publisher SNSPublisher) *SNSProvider {
	return &SNSProvider{publisher: publisher}
}

func (p *SNSProvider) Name() string { return ProviderSNS }

func (p *SNSProvider) Configured() bool { return p.publisher != nil }

func (p *SNSProvider) Send(ctx context.Context, to, body string) (*SendResult, error) {
	if p.publisher == nil {
		return nil, notConfigured(ProviderSNS)
	}
	messageID, err := p.publisher.Publish(ctx, to, body)
	if err != nil {
		return nil, transportError(ProviderSNS, err, "publish")
	}

	return &SendResult{
		MessageID: messageID,
		Status:    "sent",
		Currency:  "USD",
	}, nil
}
