package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/allyourbase/phoneverify/internal/metrics"
	"github.com/allyourbase/phoneverify/internal/phone"
	"github.com/allyourbase/phoneverify/internal/sms"
)

// DefaultTemplate is the SMS body; %s receives the code.
const DefaultTemplate = "Your verification code: %s"

// ErrAllProvidersUnavailable is returned only when the fallback channel
// itself cannot run.
var ErrAllProvidersUnavailable = errors.New("all SMS providers unavailable")

// Result is the outcome of one dispatch, including any fallback.
type Result struct {
	Success     bool
	Provider    string
	MessageID   string
	Cost        float64
	Currency    string
	Status      string
	IsSimulated bool
	// Errors lists failures of providers tried before the one that produced
	// this result. It is empty on a clean primary success.
	Errors []string
}

// Options configures an Orchestrator.
type Options struct {
	Selector SelectorConfig
	Template string
	Timeout  time.Duration
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Orchestrator sends verification codes through the selected provider and
// falls back to the test channel on any provider error.
type Orchestrator struct {
	providers map[string]sms.Provider
	fallback  sms.Provider
	selector  SelectorConfig
	template  string
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New creates an Orchestrator. providers are keyed by Name(); fallback is
// normally an *sms.TestProvider and is also registered under its own name.
func New(providers []sms.Provider, fallback sms.Provider, opts Options) *Orchestrator {
	o := &Orchestrator{
		providers: make(map[string]sms.Provider, len(providers)+1),
		fallback:  fallback,
		selector:  opts.Selector,
		template:  opts.Template,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if o.template == "" {
		o.template = DefaultTemplate
	}
	if o.timeout <= 0 {
		o.timeout = sms.DefaultTimeout
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	for _, p := range providers {
		o.providers[p.Name()] = p
	}
	if fallback != nil {
		if _, ok := o.providers[fallback.Name()]; !ok {
			o.providers[fallback.Name()] = fallback
		}
	}
	return o
}

// Provider returns the registered provider with the given id.
func (o *Orchestrator) Provider(name string) (sms.Provider, bool) {
	p, ok := o.providers[name]
	return p, ok
}

// Mode returns the configured selection mode.
func (o *Orchestrator) Mode() string {
	if o.selector.Mode == "" {
		return ModeAuto
	}
	return o.selector.Mode
}

// Select resolves the provider id for phone without sending anything.
func (o *Orchestrator) Select(phoneNumber string) string {
	return Select(phoneNumber, o.selector)
}

// DispatchCode sends code to phoneNumber. Provider failures are absorbed by
// the fallback channel; the only error is ErrAllProvidersUnavailable.
func (o *Orchestrator) DispatchCode(ctx context.Context, phoneNumber, code string) (*Result, error) {
	body := fmt.Sprintf(o.template, code)
	name := o.Select(phoneNumber)

	var errs []string
	if p, ok := o.providers[name]; ok {
		res, err := o.send(ctx, p, phoneNumber, body)
		if err == nil {
			return toResult(p.Name(), res, nil), nil
		}
		errs = append(errs, err.Error())
	} else {
		errs = append(errs, fmt.Sprintf("%s: unknown provider", name))
	}

	if o.fallback == nil {
		o.logger.Error("no fallback SMS channel", "provider", name, "errors", errs)
		return nil, ErrAllProvidersUnavailable
	}
	if o.fallback.Name() == name {
		// The fallback already failed as the primary.
		return nil, fmt.Errorf("%w: %v", ErrAllProvidersUnavailable, errs)
	}

	o.metrics.ObserveFallback(name)
	o.logger.Warn("SMS provider failed, falling back to test channel",
		"provider", name,
		"phone", phone.Mask(phoneNumber),
		"errors", errs,
	)

	res, err := o.send(ctx, o.fallback, phoneNumber, body)
	if err != nil {
		errs = append(errs, err.Error())
		o.logger.Error("fallback SMS channel failed", "errors", errs)
		return nil, fmt.Errorf("%w: %v", ErrAllProvidersUnavailable, errs)
	}
	return toResult(o.fallback.Name(), res, errs), nil
}

func (o *Orchestrator) send(ctx context.Context, p sms.Provider, to, body string) (*sms.SendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	res, err := p.Send(ctx, to, body)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else if res == nil {
		outcome = "error"
		err = fmt.Errorf("%s: empty send result", p.Name())
	}
	o.metrics.ObserveDispatch(p.Name(), outcome, time.Since(start).Seconds())
	return res, err
}

func toResult(provider string, res *sms.SendResult, errs []string) *Result {
	return &Result{
		Success:     true,
		Provider:    provider,
		MessageID:   res.MessageID,
		Cost:        res.Cost,
		Currency:    res.Currency,
		Status:      res.Status,
		IsSimulated: res.IsSimulated,
		Errors:      errs,
	}
}
