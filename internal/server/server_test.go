package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allyourbase/phoneverify/internal/config"
	"github.com/allyourbase/phoneverify/internal/dispatch"
	"github.com/allyourbase/phoneverify/internal/metrics"
	"github.com/allyourbase/phoneverify/internal/risk"
	"github.com/allyourbase/phoneverify/internal/server"
	"github.com/allyourbase/phoneverify/internal/sms"
	"github.com/allyourbase/phoneverify/internal/verify"
)

const (
	uzPhone    = "+998901234567"
	testSecret = "0123456789abcdef0123456789abcdef"
)

type harness struct {
	srv     *server.Server
	svc     *verify.Service
	store   *verify.MemoryStore
	primary *sms.CaptureProvider
}

type option func(*config.Config, *dispatch.SelectorConfig)

func withSelector(mode string) option {
	return func(_ *config.Config, sel *dispatch.SelectorConfig) { sel.Mode = mode }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	cfg.Server.IPRateLimit = 0
	sel := dispatch.SelectorConfig{Mode: sms.ProviderRegional}
	for _, o := range opts {
		o(cfg, &sel)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	primary := &sms.CaptureProvider{ID: sms.ProviderRegional}
	orch := dispatch.New(
		[]sms.Provider{primary},
		sms.NewTestProvider(logger, 0),
		dispatch.Options{Selector: sel, Logger: logger, Metrics: m},
	)

	store := verify.NewMemoryStore()
	svc := verify.NewService(store, orch, verify.DefaultConfig(), logger)
	svc.SetMetrics(m)

	srv := server.New(cfg, logger, server.Deps{
		Service:      svc,
		Orchestrator: orch,
		Fraud:        risk.NewRuleChecker(risk.DefaultFraudConfig()),
		Gatherer:     reg,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &harness{srv: srv, svc: svc, store: store, primary: primary}
}

func (h *harness) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func signToken(t *testing.T, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestSendThenVerify(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/phone/send-verification", `{"phone":"90 123 45 67"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, uzPhone, body["phone"])
	assert.Equal(t, float64(600), body["expiresIn"])
	assert.Equal(t, sms.ProviderRegional, body["provider"])
	assert.Equal(t, "cap-1", body["messageId"])
	assert.Equal(t, false, body["isSimulated"])
	assert.NotContains(t, body, "demoCode")

	code := h.primary.LastCode()
	require.Len(t, code, 6)

	w = h.do(t, http.MethodPost, "/phone/verify-code", `{"phone":"+998901234567","code":"`+code+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.Equal(t, uzPhone, body["phone"])
	assert.NotEmpty(t, body["verifiedAt"])

	w = h.do(t, http.MethodPost, "/phone/verify-code", `{"phone":"+998901234567","code":"`+code+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, verify.ErrNotFound.Error(), decode(t, w)["message"])
}

func TestSendFallsBackToDemoCode(t *testing.T) {
	h := newHarness(t)
	h.primary.Err = errors.New("gateway down")

	w := h.do(t, http.MethodPost, "/phone/send-verification", `{"phone":"+998901234567"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["isSimulated"])
	assert.Equal(t, sms.ProviderTest, body["provider"])
	assert.NotEmpty(t, body["errors"])
	demo, ok := body["demoCode"].(string)
	require.True(t, ok)
	require.Len(t, demo, 6)

	w = h.do(t, http.MethodPost, "/phone/verify-code", `{"phone":"+998901234567","code":"`+demo+`"}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(t, http.MethodGet, "/phone/verification-status/+998901234567", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["hasActiveCode"])
}

func TestVerifyWrongCodeCountsDown(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/phone/send-verification", `{"phone":"+998901234567"}`)
	require.Equal(t, http.StatusOK, w.Code)

	wrong := "000000"
	if h.primary.LastCode() == wrong {
		wrong = "111111"
	}
	req := `{"phone":"+998901234567","code":"` + wrong + `"}`

	w = h.do(t, http.MethodPost, "/phone/verify-code", req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	data, ok := decode(t, w)["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), data["attemptsRemaining"])

	w = h.do(t, http.MethodPost, "/phone/verify-code", req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/phone/verify-code", req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = h.do(t, http.MethodPost, "/phone/verify-code", req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, verify.ErrNotFound.Error(), decode(t, w)["message"])
}

func TestVerifyCodeValidation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "missing code", body: `{"phone":"+998901234567"}`, want: http.StatusBadRequest},
		{name: "missing phone", body: `{"code":"123456"}`, want: http.StatusBadRequest},
		{name: "malformed json", body: `{"phone":`, want: http.StatusBadRequest},
		{name: "no active code", body: `{"phone":"+998901234567","code":"123456"}`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/phone/verify-code", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestJSONRoutesRequireJSONContentType(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/phone/validate", `{"phone":"+998901234567"}`, "Content-Type", "text/plain")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/phone/verification-status/+998901234567", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["hasActiveCode"])
	assert.Equal(t, float64(0), body["remainingTime"])

	w = h.do(t, http.MethodPost, "/phone/send-verification", `{"phone":"+998901234567"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/phone/verification-status/%2B998901234567", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, true, body["hasActiveCode"])
	assert.Equal(t, false, body["isExpired"])
	assert.Equal(t, float64(3), body["attemptsRemaining"])
	remaining, _ := body["remainingTime"].(float64)
	assert.InDelta(t, 600, remaining, 2)

	w = h.do(t, http.MethodGet, "/phone/verification-status/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateEndpoint(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/phone/validate", `{"phone":"+998901234567","type":"uz"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["isValid"])
	assert.Equal(t, "allow", body["recommendation"])
	assert.Equal(t, "Beeline", body["operator"])
	fraud, ok := body["fraudCheck"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(0), fraud["riskScore"])

	w = h.do(t, http.MethodPost, "/phone/validate", `{"phone":"12345"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	data, ok := decode(t, w)["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, data["isValid"])
	assert.NotEmpty(t, data["errors"])

	w = h.do(t, http.MethodPost, "/phone/validate", `{"phone":"+79161234567","type":"uz"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "region mismatch is an error")
}

func TestSendRateLimited(t *testing.T) {
	h := newHarness(t)
	lim := risk.NewMemoryLimiter(risk.Limits{Hourly: 1, Daily: 10})
	t.Cleanup(lim.Stop)
	h.svc.SetRateLimiter(lim)

	w := h.do(t, http.MethodPost, "/phone/send-verification", `{"phone":"+998901234567"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodPost, "/phone/send-verification", `{"phone":"+998901234567"}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	data, ok := decode(t, w)["data"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["nextAllowedTime"])

	w = h.do(t, http.MethodPost, "/phone/send-verification", `{"phone":"+998911234567"}`)
	assert.Equal(t, http.StatusOK, w.Code, "limits are per phone")
}

func TestSendBlockedByFraudCheck(t *testing.T) {
	h := newHarness(t)
	cfg := risk.DefaultFraudConfig()
	cfg.BlockedPrefixes = []string{"+99890"}
	h.svc.SetFraudChecker(risk.NewRuleChecker(cfg))

	w := h.do(t, http.MethodPost, "/phone/send-verification", `{"phone":"+998901234567"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 0, h.primary.CallCount())
}

func TestSendInvalidPhone(t *testing.T) {
	h := newHarness(t)
	for _, body := range []string{`{"phone":""}`, `{"phone":"call me"}`, `{}`} {
		w := h.do(t, http.MethodPost, "/phone/send-verification", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Equal(t, 0, h.primary.CallCount())
}

func TestCleanupExpired(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Put(context.Background(), uzPhone, verify.Entry{
		Code:      "123456",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	w := h.do(t, http.MethodPost, "/phone/cleanup-expired", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["cleaned"])
	assert.Contains(t, body["message"], "1")
	assert.Equal(t, 0, h.store.Len())
}

func TestProviderInfo(t *testing.T) {
	t.Run("fixed provider", func(t *testing.T) {
		h := newHarness(t)
		w := h.do(t, http.MethodGet, "/phone/provider-info", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, sms.ProviderRegional, body["provider"])
		assert.Equal(t, true, body["isConfigured"])
		assert.Equal(t, false, body["isDemo"])
	})

	t.Run("test mode", func(t *testing.T) {
		h := newHarness(t, withSelector(dispatch.ModeTest))
		w := h.do(t, http.MethodGet, "/phone/provider-info", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, sms.ProviderTest, body["provider"])
		assert.Equal(t, true, body["isDemo"])
		assert.Equal(t, "DEMO", body["currency"])
	})

	t.Run("auto selects by phone", func(t *testing.T) {
		h := newHarness(t, withSelector(dispatch.ModeAuto))
		w := h.do(t, http.MethodGet, "/phone/provider-info?phone=%2B79161234567", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, sms.ProviderInternational, body["provider"])
		assert.Equal(t, false, body["isConfigured"], "international is not registered")
		assert.Equal(t, true, body["isDemo"])

		w = h.do(t, http.MethodGet, "/phone/provider-info?phone=901234567", "")
		assert.Equal(t, sms.ProviderRegional, decode(t, w)["provider"])
	})
}

func TestBearerTokenSetsOwner(t *testing.T) {
	h := newHarness(t, func(c *config.Config, _ *dispatch.SelectorConfig) { c.Auth.JWTSecret = testSecret })

	w := h.do(t, http.MethodPost, "/phone/send-verification", `{"phone":"+998901234567"}`,
		"Authorization", "Bearer "+signToken(t, "user-42"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	e, ok, err := h.store.Get(context.Background(), uzPhone)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "user-42", e.OwnerID)
}

func TestAnonymousOwnerWithoutToken(t *testing.T) {
	h := newHarness(t, func(c *config.Config, _ *dispatch.SelectorConfig) { c.Auth.JWTSecret = testSecret })

	w := h.do(t, http.MethodPost, "/phone/send-verification", `{"phone":"+998901234567"}`)
	require.Equal(t, http.StatusOK, w.Code)

	e, _, err := h.store.Get(context.Background(), uzPhone)
	require.NoError(t, err)
	assert.Equal(t, verify.AnonymousOwner, e.OwnerID)
}

func TestInvalidBearerTokenRejected(t *testing.T) {
	h := newHarness(t, func(c *config.Config, _ *dispatch.SelectorConfig) { c.Auth.JWTSecret = testSecret })

	w := h.do(t, http.MethodGet, "/phone/provider-info", "", "Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "x"})
	forged, err := other.SignedString([]byte("another-secret-another-secret-xx"))
	require.NoError(t, err)
	w = h.do(t, http.MethodGet, "/phone/provider-info", "", "Authorization", "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/phone/send-verification", `{"phone":"+998901234567"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "phoneverify_sms_dispatch_total")
	assert.Contains(t, w.Body.String(), `phoneverify_verification_events_total{event="sent"} 1`)
}

func TestIPRateLimit(t *testing.T) {
	h := newHarness(t, func(c *config.Config, _ *dispatch.SelectorConfig) { c.Server.IPRateLimit = 2 })

	for i := range 2 {
		w := h.do(t, http.MethodGet, "/phone/provider-info", "")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}
	w := h.do(t, http.MethodGet, "/phone/provider-info", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = h.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code, "health is not limited")
}

func TestCORSHeaders(t *testing.T) {
	h := newHarness(t, func(c *config.Config, _ *dispatch.SelectorConfig) {
		c.Server.CORSAllowedOrigins = []string{"http://example.com", "http://other.com"}
	})

	w := h.do(t, http.MethodGet, "/health", "", "Origin", "http://other.com")
	assert.Equal(t, "http://other.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Vary"), "Origin")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	w = h.do(t, http.MethodGet, "/health", "", "Origin", "http://evil.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardPreflight(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodOptions, "/phone/send-verification", "", "Origin", "http://anything.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
