package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/allyourbase/phoneverify/internal/config"
	"github.com/allyourbase/phoneverify/internal/dispatch"
	"github.com/allyourbase/phoneverify/internal/httputil"
	"github.com/allyourbase/phoneverify/internal/phone"
	"github.com/allyourbase/phoneverify/internal/verify"
)

// FraudChecker is the subset of risk.RuleChecker used by /phone/validate.
type FraudChecker = verify.FraudChecker

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Service      *verify.Service
	Orchestrator *dispatch.Orchestrator
	Validator    *phone.Validator
	Fraud        FraudChecker // nil skips the fraud section of /phone/validate
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Server is the phoneverify HTTP server.
type Server struct {
	cfg       *config.Config
	router    *chi.Mux
	http      *http.Server
	logger    *slog.Logger
	deps      Deps
	ipRL      *ipRateLimiter // nil when server.ip_rate_limit is 0
	startTime time.Time
}

// New creates a Server with middleware and routes configured.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	if deps.Validator == nil {
		deps.Validator = phone.NewValidator()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.Server.CORSAllowedOrigins))

	s := &Server{
		cfg:       cfg,
		router:    r,
		logger:    logger,
		deps:      deps,
		startTime: time.Now(),
	}
	if cfg.Server.IPRateLimit > 0 {
		s.ipRL = newIPRateLimiter(cfg.Server.IPRateLimit, time.Minute)
	}

	r.Get("/health", s.handleHealth)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/phone", func(r chi.Router) {
		if s.ipRL != nil {
			r.Use(s.ipRL.Middleware)
		}
		r.Use(ownerMiddleware([]byte(cfg.Auth.JWTSecret)))

		r.Get("/verification-status/{phone}", s.handleStatus)
		r.Get("/provider-info", s.handleProviderInfo)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			r.Post("/validate", s.handleValidate)
			r.Post("/send-verification", s.handleSendVerification)
			r.Post("/verify-code", s.handleVerifyCode)
		})
		r.Post("/cleanup-expired", s.handleCleanupExpired)
	})

	return s
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Serve accepts connections on ln, which may be a TLS listener.
func (s *Server) Serve(ln net.Listener) error {
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("server starting", "address", ln.Addr().String())
	if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := time.Duration(s.cfg.Server.ShutdownTimeout) * time.Second
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("shutting down server", "timeout", timeout)
	if s.ipRL != nil {
		s.ipRL.Stop()
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": int(time.Since(s.startTime).Seconds()),
	})
}
