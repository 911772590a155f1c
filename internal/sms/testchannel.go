package sms

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allyourbase/phoneverify/internal/phone"
)

// DefaultTestDelay models gateway latency on the test channel.
const DefaultTestDelay = 300 * time.Millisecond

// TestProvider is the no-op channel. It never reaches a network, never fails,
// and marks every result as simulated so callers can surface the code
// themselves. It is also the fallback for every real provider.
type TestProvider struct {
	logger *slog.Logger
	delay  time.Duration
}

// NewTestProvider creates a TestProvider. If logger is nil, slog.Default() is
// used. A negative delay is treated as zero.
func NewTestProvider(logger *slog.Logger, delay time.Duration) *TestProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if delay < 0 {
		delay = 0
	}
	return &TestProvider{logger: logger, delay: delay}
}

func (p *TestProvider) Name() string { return ProviderTest }

func (p *TestProvider) Configured() bool { return true }

// Send waits for the configured delay, or until ctx is done, and then returns
// a synthetic result. The error is always nil.
func (p *TestProvider) Send(ctx context.Context, to, body string) (*SendResult, error) {
	if p.delay > 0 {
		t := time.NewTimer(p.delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}
	p.logger.Info("sms.TestProvider", "to", phone.Mask(to), "body_length", len(body))
	return &SendResult{
		MessageID:   "test-" + uuid.NewString(),
		Status:      "simulated",
		IsSimulated: true,
	}, nil
}

// Balance reports an empty demo balance.
func (p *TestProvider) Balance(context.Context) (*Balance, error) {
	return &Balance{Amount: 0, Currency: "DEMO"}, nil
}
