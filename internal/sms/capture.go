package sms

import (
	"context"
	"regexp"
	"sync"
)

var codeRe = regexp.MustCompile(`\b(\d{4,8})\b`)

// CaptureProvider records SMS sends for use in tests. Setting Err makes every
// Send fail with that error, which models a gateway outage.
type CaptureProvider struct {
	ID  string
	Err error

	mu    sync.Mutex
	Calls []CaptureCall
}

// CaptureCall records a single Send invocation.
type CaptureCall struct {
	To   string
	Body string
}

func (c *CaptureProvider) Name() string {
	if c.ID == "" {
		return "capture"
	}
	return c.ID
}

func (c *CaptureProvider) Send(_ context.Context, to, body string) (*SendResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, CaptureCall{To: to, Body: body})
	if c.Err != nil {
		return nil, c.Err
	}
	return &SendResult{MessageID: "cap-1", Status: "captured", Cost: 0.05, Currency: "USD"}, nil
}

// LastCode extracts a 4-8 digit OTP from the last captured SMS body.
func (c *CaptureProvider) LastCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Calls) == 0 {
		return ""
	}
	matches := codeRe.FindStringSubmatch(c.Calls[len(c.Calls)-1].Body)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// CallCount returns the number of recorded sends.
func (c *CaptureProvider) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}
