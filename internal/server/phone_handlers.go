package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/allyourbase/phoneverify/internal/dispatch"
	"github.com/allyourbase/phoneverify/internal/httputil"
	"github.com/allyourbase/phoneverify/internal/phone"
	"github.com/allyourbase/phoneverify/internal/risk"
	"github.com/allyourbase/phoneverify/internal/sms"
	"github.com/allyourbase/phoneverify/internal/verify"
)

const balanceTimeout = 5 * time.Second

type validateRequest struct {
	Phone string `json:"phone"`
	Type  string `json:"type"`
}

type validateResponse struct {
	IsValid        bool                `json:"isValid"`
	Formatted      string              `json:"formatted"`
	Region         string              `json:"region,omitempty"`
	Operator       string              `json:"operator,omitempty"`
	Errors         []string            `json:"errors"`
	Warnings       []string            `json:"warnings"`
	FraudCheck     *risk.Assessment    `json:"fraudCheck,omitempty"`
	Recommendation risk.Recommendation `json:"recommendation"`
}

type sendRequest struct {
	Phone string `json:"phone"`
}

type sendResponse struct {
	Phone       string   `json:"phone"`
	ExpiresIn   int      `json:"expiresIn"`
	MessageID   string   `json:"messageId"`
	Provider    string   `json:"provider"`
	Cost        float64  `json:"cost"`
	Currency    string   `json:"currency,omitempty"`
	IsSimulated bool     `json:"isSimulated"`
	DemoCode    string   `json:"demoCode,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

type verifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type verifyResponse struct {
	Phone      string    `json:"phone"`
	VerifiedAt time.Time `json:"verifiedAt"`
}

type statusResponse struct {
	HasActiveCode     bool `json:"hasActiveCode"`
	IsExpired         bool `json:"isExpired"`
	RemainingTime     int  `json:"remainingTime"`
	AttemptsRemaining int  `json:"attemptsRemaining"`
}

type providerInfoResponse struct {
	Provider     string  `json:"provider"`
	Balance      float64 `json:"balance"`
	Currency     string  `json:"currency"`
	IsDemo       bool    `json:"isDemo"`
	IsConfigured bool    `json:"isConfigured"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	v := s.deps.Validator.Validate(req.Phone, phone.ParseRegion(req.Type))
	resp := validateResponse{
		IsValid:        v.IsValid,
		Formatted:      v.Formatted,
		Region:         v.Region,
		Operator:       v.Operator,
		Errors:         v.Errors,
		Warnings:       v.Warnings,
		Recommendation: risk.Allow,
	}
	if !v.IsValid {
		httputil.WriteErrorData(w, http.StatusBadRequest, "invalid phone number", map[string]any{
			"isValid":   false,
			"formatted": v.Formatted,
			"errors":    v.Errors,
			"warnings":  v.Warnings,
		})
		return
	}

	if s.deps.Fraud != nil {
		a, err := s.deps.Fraud.Check(r.Context(), v.Canonical, ownerFromContext(r.Context()))
		if err != nil {
			s.logger.Error("fraud check failed", "error", err, "phone", phone.Mask(v.Canonical))
			httputil.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}
		resp.FraudCheck = &a
		resp.Recommendation = a.Recommendation
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSendVerification(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Phone) == "" {
		httputil.WriteError(w, http.StatusBadRequest, "phone is required")
		return
	}

	res, err := s.deps.Service.RequestCode(r.Context(), req.Phone, ownerFromContext(r.Context()))
	if err != nil {
		s.writeVerifyError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, sendResponse{
		Phone:       res.Phone,
		ExpiresIn:   res.ExpiresIn,
		MessageID:   res.MessageID,
		Provider:    res.Provider,
		Cost:        res.Cost,
		Currency:    res.Currency,
		IsSimulated: res.IsSimulated,
		DemoCode:    res.DemoCode,
		Errors:      res.Errors,
	})
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Phone) == "" {
		httputil.WriteError(w, http.StatusBadRequest, "phone is required")
		return
	}

	res, err := s.deps.Service.ConfirmCode(r.Context(), req.Phone, req.Code)
	if err != nil {
		s.writeVerifyError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verifyResponse{Phone: res.Phone, VerifiedAt: res.VerifiedAt.UTC()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "phone"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid phone number")
		return
	}
	st, err := s.deps.Service.Status(r.Context(), raw)
	if err != nil {
		s.writeVerifyError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statusResponse{
		HasActiveCode:     st.HasActiveCode,
		IsExpired:         st.IsExpired,
		RemainingTime:     st.RemainingSeconds,
		AttemptsRemaining: st.AttemptsRemaining,
	})
}

func (s *Server) handleCleanupExpired(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Service.SweepExpired(r.Context())
	if err != nil {
		s.writeVerifyError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("cleaned %d expired codes", n),
		"cleaned": n,
	})
}

// handleProviderInfo reports the provider that would serve ?phone=, or the
// configured mode's default when no phone is given.
func (s *Server) handleProviderInfo(w http.ResponseWriter, r *http.Request) {
	name := s.deps.Orchestrator.Select(phone.Canonical(r.URL.Query().Get("phone")))
	resp := providerInfoResponse{Provider: name}

	p, ok := s.deps.Orchestrator.Provider(name)
	if !ok {
		resp.IsDemo = true
		httputil.WriteJSON(w, http.StatusOK, resp)
		return
	}

	resp.IsConfigured = true
	if c, ok := p.(sms.Configurer); ok {
		resp.IsConfigured = c.Configured()
	}
	resp.IsDemo = name == sms.ProviderTest || !resp.IsConfigured

	if br, ok := p.(sms.BalanceReporter); ok && resp.IsConfigured {
		ctx, cancel := context.WithTimeout(r.Context(), balanceTimeout)
		defer cancel()
		bal, err := br.Balance(ctx)
		switch {
		case err == nil:
			resp.Balance = bal.Amount
			resp.Currency = bal.Currency
		case errors.Is(err, sms.ErrBalanceUnsupported):
		default:
			s.logger.Warn("balance lookup failed", "provider", name, "error", err)
		}
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// writeVerifyError maps verification errors onto HTTP statuses. Anything
// unrecognized is logged and reported as a bare 500.
func (s *Server) writeVerifyError(w http.ResponseWriter, err error) {
	var mismatch *verify.CodeMismatchError
	var limited *verify.RateLimitError

	switch {
	case errors.As(err, &mismatch):
		httputil.WriteErrorData(w, http.StatusBadRequest, err.Error(), map[string]any{
			"attemptsRemaining": mismatch.Remaining,
		})
	case errors.As(err, &limited):
		if !limited.RetryAfter.IsZero() {
			setRetryAfter(w, limited.RetryAfter)
			httputil.WriteErrorData(w, http.StatusTooManyRequests, verify.ErrRateLimited.Error(), map[string]any{
				"nextAllowedTime": limited.RetryAfter.UTC(),
			})
			return
		}
		httputil.WriteError(w, http.StatusTooManyRequests, verify.ErrRateLimited.Error())
	case errors.Is(err, verify.ErrRateLimited), errors.Is(err, verify.ErrAttemptsExceeded):
		httputil.WriteError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, verify.ErrBlocked):
		httputil.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, verify.ErrInvalidPhone),
		errors.Is(err, verify.ErrCodeRequired),
		errors.Is(err, verify.ErrExpired),
		errors.Is(err, verify.ErrNotFound):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dispatch.ErrAllProvidersUnavailable):
		s.logger.Error("sms dispatch failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to send verification code")
	default:
		s.logger.Error("verification request failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
