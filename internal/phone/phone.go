// Package phone canonicalizes and validates phone numbers for the
// verification flow. Normalize is the single canonicalization function used
// as the store key on both the send and confirm paths.
package phone

import (
	"strings"
)

// Country calling codes handled by the local-format rules.
const (
	CodeUzbekistan = "998"
	CodeRussia     = "7"
)

const (
	uzLocalDigits = 9  // 90 123 45 67
	ruLocalDigits = 10 // 916 123 45 67
	minE164Digits = 8
	maxE164Digits = 15
)

// Normalize rewrites raw into the canonical "+<country code><subscriber>"
// form. It returns ok=false and raw unchanged when no rule matches; callers
// use the value verbatim in that case.
//
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	plus := strings.HasPrefix(trimmed, "+")
	digits := digitsOnly(trimmed)

	if !plus {
		switch {
		case len(digits) == uzLocalDigits:
			return "+" + CodeUzbekistan + digits, true
		case len(digits) == ruLocalDigits && digits[0] == '9':
			return "+" + CodeRussia + digits, true
		case len(digits) == ruLocalDigits+1 && digits[0] == '8':
			// Russian trunk prefix 8 stands in for +7.
			return "+" + CodeRussia + digits[1:], true
		case len(digits) == len(CodeUzbekistan)+uzLocalDigits && strings.HasPrefix(digits, CodeUzbekistan):
			return "+" + digits, true
		case len(digits) == len(CodeRussia)+ruLocalDigits && strings.HasPrefix(digits, CodeRussia):
			return "+" + digits, true
		}
		return raw, false
	}

	if len(digits) >= minE164Digits && len(digits) <= maxE164Digits {
		return "+" + digits, true
	}
	return raw, false
}

// Canonical returns Normalize(raw) without the ok flag.
func Canonical(raw string) string {
	p, _ := Normalize(raw)
	return p
}

// Mask hides all but the last four digits of a phone for logging.
func Mask(p string) string {
	if len(p) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(p)-4) + p[len(p)-4:]
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
