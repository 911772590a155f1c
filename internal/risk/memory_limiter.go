package risk

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is an in-memory per-phone sliding window limiter with an
// hourly and a daily window. Check records a send when it allows one.
type MemoryLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limits   Limits
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	timestamps []time.Time
}

const dayWindow = 24 * time.Hour

// NewMemoryLimiter creates a limiter and starts a background goroutine that
// drops idle phones. Call Stop to end it.
func NewMemoryLimiter(limits Limits) *MemoryLimiter {
	l := &MemoryLimiter{
		visitors: make(map[string]*visitor),
		limits:   limits,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.cleanup(time.Hour)
	return l
}

// SetClock overrides the time source. Intended for tests.
func (l *MemoryLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Stop terminates the background cleanup goroutine.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *MemoryLimiter) Check(_ context.Context, phone, _ string) (Limit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[phone]
	if !ok {
		v = &visitor{}
		l.visitors[phone] = v
	}
	pruneTimestamps(v, now.Add(-dayWindow))

	hourCutoff := now.Add(-time.Hour)
	hourly := 0
	var oldestInHour time.Time
	for _, ts := range v.timestamps {
		if ts.After(hourCutoff) {
			if hourly == 0 {
				oldestInHour = ts
			}
			hourly++
		}
	}
	daily := len(v.timestamps)

	switch {
	case daily >= l.limits.Daily:
		return Limit{
			HourlyRemaining: remaining(l.limits.Hourly, hourly),
			NextAllowedTime: v.timestamps[0].Add(dayWindow),
		}, nil
	case hourly >= l.limits.Hourly:
		return Limit{
			DailyRemaining:  remaining(l.limits.Daily, daily),
			NextAllowedTime: oldestInHour.Add(time.Hour),
		}, nil
	}

	v.timestamps = append(v.timestamps, now)
	return Limit{
		CanSend:         true,
		HourlyRemaining: remaining(l.limits.Hourly, hourly+1),
		DailyRemaining:  remaining(l.limits.Daily, daily+1),
	}, nil
}

// pruneTimestamps removes timestamps older than cutoff from a visitor in place.
func pruneTimestamps(v *visitor, cutoff time.Time) {
	valid := v.timestamps[:0]
	for _, ts := range v.timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	v.timestamps = valid
}

func (l *MemoryLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := l.now().Add(-dayWindow)
			for phone, v := range l.visitors {
				pruneTimestamps(v, cutoff)
				if len(v.timestamps) == 0 {
					delete(l.visitors, phone)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}
