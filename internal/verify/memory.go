package verify

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. Entries are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex // guards entries only
	entries map[string]Entry
	locks   keyedMutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		locks:   keyedMutex{locks: make(map[string]*refLock)},
	}
}

func (s *MemoryStore) Put(_ context.Context, phone string, e Entry) error {
	unlock := s.locks.lock(phone)
	defer unlock()
	s.set(phone, e)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, phone string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[phone]
	return e, ok, nil
}

func (s *MemoryStore) RecordFailedAttempt(ctx context.Context, phone string) (Entry, bool, error) {
	var (
		out   Entry
		found bool
	)
	err := s.Update(ctx, phone, func(e *Entry, ok bool) Mutation {
		if !ok {
			return Keep
		}
		e.Attempts++
		out, found = *e, true
		return Save
	})
	return out, found, err
}

func (s *MemoryStore) Delete(_ context.Context, phone string) error {
	unlock := s.locks.lock(phone)
	defer unlock()
	s.remove(phone)
	return nil
}

func (s *MemoryStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	phones := make([]string, 0, len(s.entries))
	for p, e := range s.entries {
		if e.Expired(now) {
			phones = append(phones, p)
		}
	}
	s.mu.Unlock()

	removed := 0
	for _, p := range phones {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		// Re-check under the key lock: a concurrent send may have replaced it.
		err := s.Update(ctx, p, func(e *Entry, ok bool) Mutation {
			if ok && e.Expired(now) {
				removed++
				return Remove
			}
			return Keep
		})
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (s *MemoryStore) Update(_ context.Context, phone string, fn UpdateFunc) error {
	unlock := s.locks.lock(phone)
	defer unlock()

	s.mu.Lock()
	e, ok := s.entries[phone]
	s.mu.Unlock()

	switch fn(&e, ok) {
	case Save:
		s.set(phone, e)
	case Remove:
		s.remove(phone)
	}
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) set(phone string, e Entry) {
	s.mu.Lock()
	s.entries[phone] = e
	s.mu.Unlock()
}

func (s *MemoryStore) remove(phone string) {
	s.mu.Lock()
	delete(s.entries, phone)
	s.mu.Unlock()
}

// keyedMutex hands out one mutex per key and frees it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
