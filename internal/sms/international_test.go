package sms_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allyourbase/phoneverify/internal/sms"
)

type intlGateway struct {
	tokenCalls atomic.Int32
	tokenFail  bool
	sendStatus int
	sendBody   string
}

func (g *intlGateway) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		g.tokenCalls.Add(1)
		if g.tokenFail {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "+14155552671", body["to"])
		assert.Equal(t, "Verify", body["from"])

		status := g.sendStatus
		if status == 0 {
			status = http.StatusCreated
		}
		w.WriteHeader(status)
		w.Write([]byte(g.sendBody))
	})
	return mux
}

func newInternational(url string) *sms.InternationalProvider {
	return sms.NewInternationalProvider(sms.InternationalConfig{
		BaseURL:      url,
		ClientID:     "client",
		ClientSecret: "secret",
		From:         "Verify",
	})
}

func TestInternationalSendSuccess(t *testing.T) {
	g := &intlGateway{sendBody: `{"id":"msg-9","status":"queued","price":0.042,"currency":"EUR"}`}
	srv := httptest.NewServer(g.handler(t))
	defer srv.Close()

	p := newInternational(srv.URL)
	result, err := p.Send(t.Context(), "+14155552671", "Your verification code: 123456")
	require.NoError(t, err)
	assert.Equal(t, "msg-9", result.MessageID)
	assert.Equal(t, "queued", result.Status)
	assert.Equal(t, 0.042, result.Cost)
	assert.Equal(t, "EUR", result.Currency)

	// Second send reuses the cached token.
	_, err = p.Send(t.Context(), "+14155552671", "again")
	require.NoError(t, err)
	assert.Equal(t, int32(1), g.tokenCalls.Load())
}

func TestInternationalTokenFailureIsTransportError(t *testing.T) {
	g := &intlGateway{tokenFail: true}
	srv := httptest.NewServer(g.handler(t))
	defer srv.Close()

	_, err := newInternational(srv.URL).Send(t.Context(), "+14155552671", "hello")
	require.Error(t, err)

	var te *sms.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "token exchange", te.Message)
}

func TestInternationalTokenExchangeHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	p := sms.NewInternationalProvider(sms.InternationalConfig{
		BaseURL:      srv.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		Timeout:      30 * time.Second,
	})
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Send(ctx, "+14155552671", "hello")
	require.Error(t, err)
	var te *sms.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "token exchange", te.Message)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestInternationalSendFailureIsTransportError(t *testing.T) {
	g := &intlGateway{sendStatus: http.StatusUnprocessableEntity, sendBody: `{"error":{"message":"unroutable destination"}}`}
	srv := httptest.NewServer(g.handler(t))
	defer srv.Close()

	_, err := newInternational(srv.URL).Send(t.Context(), "+14155552671", "hello")
	require.Error(t, err)

	var te *sms.TransportError
	require.True(t, errors.As(err, &te))
	assert.Contains(t, err.Error(), "error 422: unroutable destination")
}

func TestInternationalWithoutCredentials(t *testing.T) {
	p := sms.NewInternationalProvider(sms.InternationalConfig{})
	assert.False(t, p.Configured())
	_, err := p.Send(t.Context(), "+14155552671", "hello")
	assert.ErrorIs(t, err, sms.ErrNotConfigured)
}
