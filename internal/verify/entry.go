// Package verify implements the SMS one-time-code lifecycle: issuing a code,
// confirming it, reporting status and sweeping expired entries.
package verify

import (
	"errors"
	"fmt"
	"time"
)

// AnonymousOwner is recorded when a request carries no owner id.
const AnonymousOwner = "anonymous"

// Entry is the outstanding verification for one canonical phone number.
type Entry struct {
	Code      string
	ExpiresAt time.Time
	Attempts  int
	OwnerID   string
}

// Expired reports whether the entry has expired at now. An entry whose
// expiry equals now is expired.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

var (
	ErrInvalidPhone     = errors.New("invalid phone number")
	ErrCodeRequired     = errors.New("verification code is required")
	ErrNotFound         = errors.New("no active verification code")
	ErrExpired          = errors.New("verification code expired")
	ErrAttemptsExceeded = errors.New("too many failed attempts")
	ErrRateLimited      = errors.New("too many verification requests")
	ErrBlocked          = errors.New("phone number blocked")
)

// CodeMismatchError is returned when the submitted code is wrong and the
// entry still has attempts left.
type CodeMismatchError struct {
	Remaining int
}

func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("invalid verification code, %d attempts remaining", e.Remaining)
}

// RateLimitError carries the time the next send is allowed. It matches
// ErrRateLimited with errors.Is.
type RateLimitError struct {
	RetryAfter time.Time
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter.IsZero() {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s, retry after %s", ErrRateLimited, e.RetryAfter.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
