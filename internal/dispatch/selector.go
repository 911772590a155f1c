// Package dispatch chooses an SMS provider for a phone number and sends
// verification codes with a guaranteed fallback to the test channel.
package dispatch

import (
	"sort"
	"strings"

	"github.com/allyourbase/phoneverify/internal/sms"
)

// Selection modes besides a fixed provider name.
const (
	ModeAuto = "auto"
	ModeTest = sms.ProviderTest
)

// DefaultAutoPrefixes routes Uzbek numbers to the regional gateway.
var DefaultAutoPrefixes = map[string]string{
	"+998": sms.ProviderRegional,
}

// SelectorConfig is the static provider selection policy.
type SelectorConfig struct {
	// Mode is "auto", "test", or a fixed provider name.
	Mode string
	// AutoPrefixes maps a country-code prefix to a provider for auto mode.
	// The longest matching prefix wins.
	AutoPrefixes map[string]string
	// Default is used in auto mode when no prefix matches.
	Default string
}

// Select returns the provider id for phone. It has no side effects.
func Select(phone string, cfg SelectorConfig) string {
	switch cfg.Mode {
	case ModeTest:
		return sms.ProviderTest
	case ModeAuto, "":
	default:
		return cfg.Mode
	}

	prefixes := cfg.AutoPrefixes
	if prefixes == nil {
		prefixes = DefaultAutoPrefixes
	}
	keys := make([]string, 0, len(prefixes))
	for k := range prefixes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if strings.HasPrefix(phone, k) {
			return prefixes[k]
		}
	}

	if cfg.Default != "" {
		return cfg.Default
	}
	return sms.ProviderInternational
}
