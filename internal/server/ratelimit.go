package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/allyourbase/phoneverify/internal/httputil"
)

// ipRateLimiter is an in-memory per-IP sliding window limiter applied to
// the /phone routes, in front of the per-phone limits.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string][]time.Time
	limit    int
	window   time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func newIPRateLimiter(limit int, window time.Duration) *ipRateLimiter {
	rl := &ipRateLimiter{
		visitors: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		stop:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Stop terminates the background cleanup goroutine.
func (rl *ipRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow checks whether ip is within the limit and records the request if so.
func (rl *ipRateLimiter) Allow(ip string) (allowed bool, remaining int, resetTime time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	ts := prune(rl.visitors[ip], now.Add(-rl.window))

	if len(ts) >= rl.limit {
		rl.visitors[ip] = ts
		return false, 0, ts[0].Add(rl.window)
	}

	ts = append(ts, now)
	rl.visitors[ip] = ts
	return true, rl.limit - len(ts), now.Add(rl.window)
}

// Middleware rate-limits by client IP.
func (rl *ipRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetTime := rl.Allow(clientIP(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			setRetryAfter(w, resetTime)
			httputil.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// setRetryAfter sets Retry-After in whole seconds, rounded up, minimum 1.
func setRetryAfter(w http.ResponseWriter, at time.Time) {
	retryAfter := int(time.Until(at).Seconds()) + 1
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
}

// prune drops timestamps at or before cutoff, reusing the slice.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	valid := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}

func (rl *ipRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-rl.window)
			for ip, ts := range rl.visitors {
				if ts = prune(ts, cutoff); len(ts) == 0 {
					delete(rl.visitors, ip)
				} else {
					rl.visitors[ip] = ts
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	// Proxy headers are trusted only from private or loopback peers, so a
	// direct client cannot spoof X-Forwarded-For.
	if isPrivateIP(host) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ip := xff
			if i := strings.IndexByte(xff, ','); i >= 0 {
				ip = xff[:i]
			}
			return strings.TrimSpace(ip)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	return host
}

func isPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsLoopback() || parsed.IsPrivate()
}
