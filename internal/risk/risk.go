// Package risk provides the rate-limit and fraud-check collaborators consulted
// before a verification code is sent.
package risk

import "time"

// Recommendation is the fraud verdict for a send request.
type Recommendation string

const (
	Allow  Recommendation = "allow"
	Verify Recommendation = "verify"
	Block  Recommendation = "block"
)

// Assessment is the outcome of a fraud check.
type Assessment struct {
	RiskScore      int            `json:"riskScore"`
	Recommendation Recommendation `json:"recommendation"`
	Reasons        []string       `json:"reasons,omitempty"`
}

// Limit is the outcome of a rate-limit check.
type Limit struct {
	CanSend         bool      `json:"canSend"`
	HourlyRemaining int       `json:"hourlyRemaining"`
	DailyRemaining  int       `json:"dailyRemaining"`
	NextAllowedTime time.Time `json:"nextAllowedTime,omitzero"`
}

// Limits caps sends per phone number.
type Limits struct {
	Hourly int
	Daily  int
}

// DefaultLimits returns the default per-phone send limits.
func DefaultLimits() Limits {
	return Limits{Hourly: 5, Daily: 10}
}

func remaining(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}
