package verify

import (
	"context"
	"time"
)

// Mutation tells Store.Update what to do with the entry after fn returns.
type Mutation int

const (
	// Keep leaves the stored entry untouched.
	Keep Mutation = iota
	// Save writes the (possibly modified) entry back.
	Save
	// Remove deletes the entry.
	Remove
)

// UpdateFunc inspects and optionally modifies the entry for one phone. ok is
// false when no entry exists. It may run more than once for a single Update
// call, so it must not have side effects beyond assigning local results.
type UpdateFunc func(e *Entry, ok bool) Mutation

// Store holds at most one entry per canonical phone number. All mutations of
// a single key are serialized.
type Store interface {
	Put(ctx context.Context, phone string, e Entry) error
	Get(ctx context.Context, phone string) (Entry, bool, error)
	// RecordFailedAttempt increments the attempt counter and returns the
	// updated entry. ok is false when no entry exists.
	RecordFailedAttempt(ctx context.Context, phone string) (Entry, bool, error)
	Delete(ctx context.Context, phone string) error
	// SweepExpired deletes every entry with ExpiresAt <= now and returns how
	// many were removed.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
	// Update runs fn atomically with respect to other mutations of phone.
	Update(ctx context.Context, phone string, fn UpdateFunc) error
}
