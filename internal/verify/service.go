package verify

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/allyourbase/phoneverify/internal/dispatch"
	"github.com/allyourbase/phoneverify/internal/metrics"
	"github.com/allyourbase/phoneverify/internal/phone"
	"github.com/allyourbase/phoneverify/internal/risk"
)

// Dispatcher sends a code to a phone number.
type Dispatcher interface {
	DispatchCode(ctx context.Context, phone, code string) (*dispatch.Result, error)
}

// RateLimiter decides whether another code may be sent to a phone.
type RateLimiter interface {
	Check(ctx context.Context, phone, ownerID string) (risk.Limit, error)
}

// FraudChecker scores a send request.
type FraudChecker interface {
	Check(ctx context.Context, phone, ownerID string) (risk.Assessment, error)
}

// Config holds verification parameters.
type Config struct {
	CodeLength  int
	Expiry      time.Duration
	MaxAttempts int
}

// DefaultConfig returns six-digit codes valid for ten minutes with three attempts.
func DefaultConfig() Config {
	return Config{CodeLength: 6, Expiry: 10 * time.Minute, MaxAttempts: 3}
}

// SendResult is returned by RequestCode.
type SendResult struct {
	Phone       string
	ExpiresIn   int
	MessageID   string
	Provider    string
	Cost        float64
	Currency    string
	IsSimulated bool
	// DemoCode is the generated code, set only when delivery was simulated.
	DemoCode string
	Errors   []string
}

// Verified is returned by a successful ConfirmCode.
type Verified struct {
	Phone      string
	VerifiedAt time.Time
}

// Status describes the outstanding verification for a phone.
type Status struct {
	HasActiveCode     bool
	IsExpired         bool
	RemainingSeconds  int
	AttemptsRemaining int
}

// Service runs the verification lifecycle.
type Service struct {
	store      Store
	dispatcher Dispatcher
	cfg        Config
	logger     *slog.Logger
	limiter    RateLimiter
	fraud      FraudChecker
	metrics    *metrics.Metrics
	now        func() time.Time
	generate   func(length int) (string, error)
}

// NewService creates a Service. Zero config fields take the defaults.
func NewService(store Store, dispatcher Dispatcher, cfg Config, logger *slog.Logger) *Service {
	def := DefaultConfig()
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = def.CodeLength
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = def.Expiry
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		generate:   GenerateCode,
	}
}

// SetRateLimiter installs a rate limiter consulted before each send.
func (s *Service) SetRateLimiter(l RateLimiter) { s.limiter = l }

// SetFraudChecker installs a fraud checker consulted before each send.
func (s *Service) SetFraudChecker(f FraudChecker) { s.fraud = f }

// SetMetrics installs verification counters.
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetCodeGenerator overrides code generation.
func (s *Service) SetCodeGenerator(gen func(length int) (string, error)) { s.generate = gen }

// RequestCode issues a fresh code for raw and dispatches it. A previous entry
// for the same phone is replaced and its attempts reset.
func (s *Service) RequestCode(ctx context.Context, raw, ownerID string) (*SendResult, error) {
	p, err := canonicalize(raw)
	if err != nil {
		return nil, err
	}
	if ownerID == "" {
		ownerID = AnonymousOwner
	}

	if s.limiter != nil {
		lim, err := s.limiter.Check(ctx, p, ownerID)
		if err != nil {
			return nil, fmt.Errorf("rate limit check: %w", err)
		}
		if !lim.CanSend {
			s.metrics.ObserveVerification("rate_limited")
			return nil, &RateLimitError{RetryAfter: lim.NextAllowedTime}
		}
	}
	if s.fraud != nil {
		verdict, err := s.fraud.Check(ctx, p, ownerID)
		if err != nil {
			return nil, fmt.Errorf("fraud check: %w", err)
		}
		if verdict.Recommendation == risk.Block {
			s.metrics.ObserveVerification("blocked")
			s.logger.Warn("verification blocked", "phone", phone.Mask(p), "risk_score", verdict.RiskScore)
			return nil, ErrBlocked
		}
	}

	code, err := s.generate(s.cfg.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("generating code: %w", err)
	}
	entry := Entry{
		Code:      code,
		ExpiresAt: s.now().Add(s.cfg.Expiry),
		OwnerID:   ownerID,
	}
	if err := s.store.Put(ctx, p, entry); err != nil {
		return nil, fmt.Errorf("storing code: %w", err)
	}

	res, err := s.dispatcher.DispatchCode(ctx, p, code)
	if err != nil {
		// Only drop our own entry; a concurrent request may have replaced it.
		delErr := s.store.Update(ctx, p, func(e *Entry, ok bool) Mutation {
			if ok && e.Code == code {
				return Remove
			}
			return Keep
		})
		if delErr != nil {
			s.logger.Error("removing undelivered code", "phone", phone.Mask(p), "error", delErr)
		}
		return nil, err
	}

	s.metrics.ObserveVerification("sent")
	s.logger.Info("verification code sent",
		"phone", phone.Mask(p),
		"provider", res.Provider,
		"simulated", res.IsSimulated,
	)

	out := &SendResult{
		Phone:       p,
		ExpiresIn:   int(s.cfg.Expiry / time.Second),
		MessageID:   res.MessageID,
		Provider:    res.Provider,
		Cost:        res.Cost,
		Currency:    res.Currency,
		IsSimulated: res.IsSimulated,
		Errors:      res.Errors,
	}
	if res.IsSimulated {
		out.DemoCode = code
	}
	return out, nil
}

// ConfirmCode checks code against the outstanding entry for raw. The
// read-check-mutate runs under the store's per-phone serialization.
func (s *Service) ConfirmCode(ctx context.Context, raw, code string) (*Verified, error) {
	p, err := canonicalize(raw)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCodeRequired
	}

	var outcome error
	var verifiedAt time.Time
	err = s.store.Update(ctx, p, func(e *Entry, ok bool) Mutation {
		now := s.now()
		switch {
		case !ok:
			outcome = ErrNotFound
			return Keep
		case e.Expired(now):
			outcome = ErrExpired
			return Remove
		case e.Attempts >= s.cfg.MaxAttempts:
			outcome = ErrAttemptsExceeded
			return Remove
		case subtle.ConstantTimeCompare([]byte(e.Code), []byte(code)) != 1:
			e.Attempts++
			if e.Attempts >= s.cfg.MaxAttempts {
				outcome = ErrAttemptsExceeded
				return Remove
			}
			outcome = &CodeMismatchError{Remaining: s.cfg.MaxAttempts - e.Attempts}
			return Save
		default:
			outcome = nil
			verifiedAt = now
			return Remove
		}
	})
	if err != nil {
		return nil, fmt.Errorf("confirming code: %w", err)
	}

	if outcome != nil {
		s.metrics.ObserveVerification(outcomeLabel(outcome))
		return nil, outcome
	}
	s.metrics.ObserveVerification("verified")
	s.logger.Info("phone verified", "phone", phone.Mask(p))
	return &Verified{Phone: p, VerifiedAt: verifiedAt}, nil
}

// Status reports the outstanding verification for raw without modifying it.
func (s *Service) Status(ctx context.Context, raw string) (Status, error) {
	p, err := canonicalize(raw)
	if err != nil {
		return Status{}, err
	}
	e, ok, err := s.store.Get(ctx, p)
	if err != nil {
		return Status{}, fmt.Errorf("reading status: %w", err)
	}
	if !ok {
		return Status{}, nil
	}
	now := s.now()
	st := Status{
		HasActiveCode:     true,
		IsExpired:         e.Expired(now),
		AttemptsRemaining: max(s.cfg.MaxAttempts-e.Attempts, 0),
	}
	if !st.IsExpired {
		st.RemainingSeconds = int(e.ExpiresAt.Sub(now).Seconds())
	}
	return st, nil
}

// SweepExpired removes expired entries and returns how many were removed.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	n, err := s.store.SweepExpired(ctx, s.now())
	if n > 0 {
		s.metrics.ObserveSwept(n)
	}
	return n, err
}

func canonicalize(raw string) (string, error) {
	if !strings.ContainsAny(raw, "0123456789") {
		return "", ErrInvalidPhone
	}
	return phone.Canonical(raw), nil
}

func outcomeLabel(err error) string {
	var mismatch *CodeMismatchError
	switch {
	case errors.As(err, &mismatch):
		return "mismatch"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrAttemptsExceeded):
		return "attempts_exceeded"
	default:
		return "error"
	}
}

// GenerateCode returns a uniformly random zero-padded numeric code.
func GenerateCode(length int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}
