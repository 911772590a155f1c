package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/allyourbase/phoneverify/internal/config"
	"github.com/allyourbase/phoneverify/internal/dispatch"
	"github.com/allyourbase/phoneverify/internal/metrics"
	"github.com/allyourbase/phoneverify/internal/phone"
	"github.com/allyourbase/phoneverify/internal/risk"
	"github.com/allyourbase/phoneverify/internal/server"
	"github.com/allyourbase/phoneverify/internal/sms"
	"github.com/allyourbase/phoneverify/internal/verify"
)

const redisPingTimeout = 5 * time.Second

// app is the wired service graph behind `phoneverify start`.
type app struct {
	orchestrator *dispatch.Orchestrator
	service      *verify.Service
	sweeper      *verify.Sweeper
	fraud        *risk.RuleChecker
	registry     *prometheus.Registry // nil when metrics are disabled
	redis        *redis.Client        // nil unless a redis backend is configured
	closers      []func()
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(a.registry)
	}

	if cfg.Verification.Store == "redis" || cfg.RateLimit.Backend == "redis" {
		client, err := openRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.closers = append(a.closers, func() { _ = client.Close() })
	}

	a.orchestrator = dispatch.New(buildProviders(ctx, cfg, logger), buildFallback(cfg, logger), dispatch.Options{
		Selector: dispatch.SelectorConfig{
			Mode:         cfg.SMS.Provider,
			AutoPrefixes: cfg.SMS.AutoPrefixes,
		},
		Template: cfg.SMS.MessageTemplate,
		Timeout:  time.Duration(cfg.SMS.Timeout) * time.Second,
		Logger:   logger,
		Metrics:  m,
	})

	var store verify.Store = verify.NewMemoryStore()
	if cfg.Verification.Store == "redis" {
		store = verify.NewRedisStore(a.redis)
	}

	a.service = verify.NewService(store, a.orchestrator, verify.Config{
		CodeLength:  cfg.Verification.CodeLength,
		Expiry:      time.Duration(cfg.Verification.Expiry) * time.Second,
		MaxAttempts: cfg.Verification.MaxAttempts,
	}, logger)
	a.service.SetMetrics(m)
	a.service.SetRateLimiter(a.buildLimiter(cfg, logger))

	a.fraud = risk.NewRuleChecker(risk.FraudConfig{
		BlockedPrefixes: cfg.Fraud.BlockedPrefixes,
		BlockThreshold:  cfg.Fraud.BlockThreshold,
		VerifyThreshold: cfg.Fraud.VerifyThreshold,
	})
	a.service.SetFraudChecker(a.fraud)

	sweeper, err := verify.NewSweeper(a.service, cfg.Verification.SweepSchedule, logger)
	if err != nil {
		return nil, fmt.Errorf("verification.sweep_schedule: %w", err)
	}
	a.sweeper = sweeper

	ok = true
	return a, nil
}

func (a *app) buildLimiter(cfg *config.Config, logger *slog.Logger) verify.RateLimiter {
	limits := risk.Limits{Hourly: cfg.RateLimit.Hourly, Daily: cfg.RateLimit.Daily}
	if cfg.RateLimit.Backend == "redis" {
		return risk.NewRedisLimiter(a.redis, limits, logger)
	}
	l := risk.NewMemoryLimiter(limits)
	a.closers = append(a.closers, l.Stop)
	return l
}

// deps returns the collaborators served over HTTP.
func (a *app) deps() server.Deps {
	d := server.Deps{
		Service:      a.service,
		Orchestrator: a.orchestrator,
		Validator:    phone.NewValidator(),
		Fraud:        a.fraud,
	}
	if a.registry != nil {
		d.Gatherer = a.registry
	}
	return d
}

// Close releases background goroutines and connections in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redis.url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

// buildProviders constructs every real gateway adapter. Adapters without
// credentials are still registered so /phone/provider-info can report them
// as unconfigured; sending through one falls back to the test channel.
func buildProviders(ctx context.Context, cfg *config.Config, logger *slog.Logger) []sms.Provider {
	timeout := time.Duration(cfg.SMS.Timeout) * time.Second

	regional := sms.NewRegionalProvider(sms.RegionalConfig{
		BaseURL:  cfg.SMS.Regional.BaseURL,
		Login:    cfg.SMS.Regional.Login,
		Password: cfg.SMS.Regional.Password,
		From:     cfg.SMS.Regional.From,
		Timeout:  timeout,
	})
	international := sms.NewInternationalProvider(sms.InternationalConfig{
		BaseURL:      cfg.SMS.International.BaseURL,
		TokenURL:     cfg.SMS.International.TokenURL,
		ClientID:     cfg.SMS.International.ClientID,
		ClientSecret: cfg.SMS.International.ClientSecret,
		From:         cfg.SMS.International.From,
		Timeout:      timeout,
	})

	var publisher sms.SNSPublisher
	if cfg.SMS.SNS.Region != "" {
		p, err := newSNSPublisher(ctx, cfg.SMS.SNS.Region, cfg.SMS.SNS.SenderID)
		if err != nil {
			logger.Warn("SNS provider unavailable", "error", err)
		} else {
			publisher = p
		}
	}

	providers := []sms.Provider{regional, international, sms.NewSNSProvider(publisher)}
	for _, p := range providers {
		if c, ok := p.(sms.Configurer); ok && !c.Configured() {
			logger.Info("sms provider not configured, sends will fall back to test channel", "provider", p.Name())
		}
	}
	return providers
}

func buildFallback(cfg *config.Config, logger *slog.Logger) sms.Provider {
	return sms.NewTestProvider(logger, time.Duration(cfg.SMS.TestDelayMS)*time.Millisecond)
}
