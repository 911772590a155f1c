package risk

import (
	"context"
	"strings"

	"github.com/allyourbase/phoneverify/internal/phone"
)

// FraudConfig tunes RuleChecker.
type FraudConfig struct {
	BlockedPrefixes []string
	BlockThreshold  int
	VerifyThreshold int
}

// DefaultFraudConfig returns the default thresholds with no blocked prefixes.
func DefaultFraudConfig() FraudConfig {
	return FraudConfig{BlockThreshold: 80, VerifyThreshold: 40}
}

const (
	scoreBlockedPrefix = 100
	scoreNotMobile     = 50
	scoreForeign       = 30
	scoreRepeatedRun   = 20
	repeatedRunLength  = 7
)

// RuleChecker scores phone numbers with fixed rules. It performs no I/O.
type RuleChecker struct {
	cfg FraudConfig
}

// NewRuleChecker creates a RuleChecker. Zero thresholds take the defaults.
func NewRuleChecker(cfg FraudConfig) *RuleChecker {
	def := DefaultFraudConfig()
	if cfg.BlockThreshold <= 0 {
		cfg.BlockThreshold = def.BlockThreshold
	}
	if cfg.VerifyThreshold <= 0 {
		cfg.VerifyThreshold = def.VerifyThreshold
	}
	return &RuleChecker{cfg: cfg}
}

func (c *RuleChecker) Check(_ context.Context, number, _ string) (Assessment, error) {
	var a Assessment
	for _, prefix := range c.cfg.BlockedPrefixes {
		if prefix != "" && strings.HasPrefix(number, prefix) {
			a.RiskScore = scoreBlockedPrefix
			a.Reasons = append(a.Reasons, "blocked prefix "+prefix)
			a.Recommendation = c.recommend(a.RiskScore)
			return a, nil
		}
	}

	region, mobile, ok := phone.Info(number)
	if !ok || !mobile {
		a.RiskScore += scoreNotMobile
		a.Reasons = append(a.Reasons, "not a mobile number")
	}
	if region != "UZ" && region != "RU" {
		a.RiskScore += scoreForeign
		a.Reasons = append(a.Reasons, "outside primary markets")
	}
	if longestRun(number) >= repeatedRunLength {
		a.RiskScore += scoreRepeatedRun
		a.Reasons = append(a.Reasons, "repeated digits")
	}
	if a.RiskScore > 100 {
		a.RiskScore = 100
	}
	a.Recommendation = c.recommend(a.RiskScore)
	return a, nil
}

func (c *RuleChecker) recommend(score int) Recommendation {
	switch {
	case score >= c.cfg.BlockThreshold:
		return Block
	case score >= c.cfg.VerifyThreshold:
		return Verify
	default:
		return Allow
	}
}

// longestRun returns the length of the longest run of one repeated digit.
func longestRun(s string) int {
	best, cur := 0, 0
	var prev rune
	for _, r := range s {
		if r < '0' || r > '9' {
			cur = 0
			prev = 0
			continue
		}
		if r == prev {
			cur++
		} else {
			cur = 1
			prev = r
		}
		if cur > best {
			best = cur
		}
	}
	return best
}
