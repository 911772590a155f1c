package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const regionalDefaultBaseURL = "https://gw.sms.uz"

// RegionalConfig holds credentials for the Uzbek regional gateway.
type RegionalConfig struct {
	BaseURL  string
	Login    string
	Password string
	From     string
	Timeout  time.Duration
}

// RegionalProvider sends SMS through the regional gateway: one POST with
// HTTP basic auth, success signalled by status "success" in the body.
type RegionalProvider struct {
	cfg    RegionalConfig
	client *http.Client
}

// NewRegionalProvider creates a RegionalProvider. If BaseURL is empty the
// production gateway is used. Missing login or password leaves the provider
// unconfigured.
func NewRegionalProvider(cfg RegionalConfig) *RegionalProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = regionalDefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &RegionalProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *RegionalProvider) Name() string { return ProviderRegional }

func (p *RegionalProvider) Configured() bool {
	return p.cfg.Login != "" && p.cfg.Password != ""
}

type regionalResponse struct {
	Status    string  `json:"status"`
	Message   string  `json:"message"`
	MessageID string  `json:"message_id"`
	Cost      float64 `json:"cost"`
	Currency  string  `json:"currency"`
}

func (p *RegionalProvider) Send(ctx context.Context, to, body string) (*SendResult, error) {
	if !p.Configured() {
		return nil, notConfigured(ProviderRegional)
	}

	reqBody, err := json.Marshal(map[string]string{
		"recipient": strings.TrimPrefix(to, "+"),
		"from":      p.cfg.From,
		"text":      body,
	})
	if err != nil {
		return nil, fmt.Errorf("regional: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/v1/sms/send", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("regional: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.cfg.Login, p.cfg.Password)

	var parsed regionalResponse
	if err := p.do(req, &parsed); err != nil {
		return nil, err
	}
	if parsed.Status != "success" {
		msg := parsed.Message
		if msg == "" {
			msg = "status " + parsed.Status
		}
		return nil, transportError(ProviderRegional, nil, "gateway rejected message: %s", msg)
	}

	currency := parsed.Currency
	if currency == "" {
		currency = "UZS"
	}
	return &SendResult{
		MessageID: parsed.MessageID,
		Status:    parsed.Status,
		Cost:      parsed.Cost,
		Currency:  currency,
	}, nil
}

// Balance queries the gateway account balance.
func (p *RegionalProvider) Balance(ctx context.Context) (*Balance, error) {
	if !p.Configured() {
		return nil, notConfigured(ProviderRegional)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/api/v1/balance", nil)
	if err != nil {
		return nil, fmt.Errorf("regional: build request: %w", err)
	}
	req.SetBasicAuth(p.cfg.Login, p.cfg.Password)

	var parsed struct {
		Balance  float64 `json:"balance"`
		Currency string  `json:"currency"`
	}
	if err := p.do(req, &parsed); err != nil {
		return nil, err
	}
	if parsed.Currency == "" {
		parsed.Currency = "UZS"
	}
	return &Balance{Amount: parsed.Balance, Currency: parsed.Currency}, nil
}

func (p *RegionalProvider) do(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return transportError(ProviderRegional, err, "send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ProviderRegional, err, "read response")
	}

	if resp.StatusCode >= 300 {
		var errResp regionalResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			return transportError(ProviderRegional, nil, "error %d: %s", resp.StatusCode, errResp.Message)
		}
		return transportError(ProviderRegional, nil, "error %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return transportError(ProviderRegional, err, "parse response")
	}
	return nil
}
