package sms

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider identifiers used in configuration and in dispatch results.
const (
	ProviderRegional      = "regional"
	ProviderInternational = "international"
	ProviderSNS           = "sns"
	ProviderTest          = "test"
)

// DefaultTimeout bounds every gateway HTTP call.
const DefaultTimeout = 10 * time.Second

// ErrNotConfigured is returned by Send when the provider was built without
// the credentials it needs. No network call is attempted.
var ErrNotConfigured = errors.New("provider not configured")

// ErrBalanceUnsupported is returned by providers that cannot report a balance.
var ErrBalanceUnsupported = errors.New("balance lookup not supported")

// SendResult holds the outcome of a provider Send call.
type SendResult struct {
	MessageID   string
	Status      string
	Cost        float64
	Currency    string
	IsSimulated bool
}

// Provider sends an SMS to a phone number.
type Provider interface {
	Name() string
	Send(ctx context.Context, to, body string) (*SendResult, error)
}

// Balance is an account balance reported by a gateway.
type Balance struct {
	Amount   float64
	Currency string
}

// BalanceReporter is implemented by providers that expose an account balance.
type BalanceReporter interface {
	Balance(ctx context.Context) (*Balance, error)
}

// Configurer is implemented by providers that can be built without credentials.
type Configurer interface {
	Configured() bool
}

// TransportError is a gateway-level failure: network error, non-2xx status,
// token exchange failure, or a rejection reported in the response body.
type TransportError struct {
	Provider string
	Message  string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

func transportError(provider string, err error, format string, args ...any) *TransportError {
	return &TransportError{Provider: provider, Message: fmt.Sprintf(format, args...), Err: err}
}

func notConfigured(provider string) error {
	return fmt.Errorf("%s: %w", provider, ErrNotConfigured)
}
