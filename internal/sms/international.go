package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const internationalDefaultBaseURL = "https://api.smsglobal-gw.com"

// InternationalConfig holds credentials for the international gateway.
type InternationalConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	From         string
	Timeout      time.Duration
}

// InternationalProvider sends SMS in two steps: an OAuth2 client-credentials
// token exchange, then a bearer-authenticated POST. Tokens are cached until
// they expire.
type InternationalProvider struct {
	cfg    InternationalConfig
	client *http.Client
	creds  *clientcredentials.Config

	mu    sync.Mutex
	token *oauth2.Token
}

// NewInternationalProvider creates an InternationalProvider. Missing client
// credentials leave the provider unconfigured.
func NewInternationalProvider(cfg InternationalConfig) *InternationalProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = internationalDefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TokenURL == "" {
		cfg.TokenURL = cfg.BaseURL + "/oauth/token"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	p := &InternationalProvider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
	if p.Configured() {
		p.creds = &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
	}
	return p
}

func (p *InternationalProvider) Name() string { return ProviderInternational }

func (p *InternationalProvider) Configured() bool {
	return p.cfg.ClientID != "" && p.cfg.ClientSecret != ""
}

func (p *InternationalProvider) Send(ctx context.Context, to, body string) (*SendResult, error) {
	if !p.Configured() {
		return nil, notConfigured(ProviderInternational)
	}

	tok, err := p.accessToken(ctx)
	if err != nil {
		return nil, transportError(ProviderInternational, err, "token exchange")
	}

	reqBody, err := json.Marshal(map[string]string{
		"from": p.cfg.From,
		"to":   to,
		"text": body,
	})
	if err != nil {
		return nil, fmt.Errorf("international: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("international: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError(ProviderInternational, err, "send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ProviderInternational, err, "read response")
	}

	if resp.StatusCode >= 300 {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return nil, transportError(ProviderInternational, nil, "error %d: %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, transportError(ProviderInternational, nil, "error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		ID       string  `json:"id"`
		Status   string  `json:"status"`
		Price    float64 `json:"price"`
		Currency string  `json:"currency"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, transportError(ProviderInternational, err, "parse response")
	}
	if parsed.Currency == "" {
		parsed.Currency = "USD"
	}

	return &SendResult{
		MessageID: parsed.ID,
		Status:    parsed.Status,
		Cost:      parsed.Price,
		Currency:  parsed.Currency,
	}, nil
}

// accessToken returns the cached token, exchanging client credentials for a
// new one under ctx when it is missing or expired.
func (p *InternationalProvider) accessToken(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token.Valid() {
		return p.token, nil
	}
	tok, err := p.creds.Token(context.WithValue(ctx, oauth2.HTTPClient, p.client))
	if err != nil {
		return nil, err
	}
	p.token = tok
	return tok, nil
}
