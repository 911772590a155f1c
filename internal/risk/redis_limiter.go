package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisLimiterPrefix = "phoneverify:rl:"

// RedisLimiter is a fixed-window per-phone limiter shared across instances.
// Redis errors fail open so an outage never blocks verification.
type RedisLimiter struct {
	client *redis.Client
	limits Limits
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisLimiter creates a limiter backed by client.
func NewRedisLimiter(client *redis.Client, limits Limits, logger *slog.Logger) *RedisLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLimiter{client: client, limits: limits, logger: logger, now: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (l *RedisLimiter) SetClock(now func() time.Time) { l.now = now }

func (l *RedisLimiter) Check(ctx context.Context, phone, _ string) (Limit, error) {
	now := l.now().UTC()
	hourStart := now.Truncate(time.Hour)
	dayStart := now.Truncate(dayWindow)
	hourKey := fmt.Sprintf("%s%s:h:%d", redisLimiterPrefix, phone, hourStart.Unix())
	dayKey := fmt.Sprintf("%s%s:d:%d", redisLimiterPrefix, phone, dayStart.Unix())

	// Increment first so concurrent callers each see a distinct count.
	pipe := l.client.TxPipeline()
	hourIncr := pipe.Incr(ctx, hourKey)
	pipe.ExpireAt(ctx, hourKey, hourStart.Add(time.Hour))
	dayIncr := pipe.Incr(ctx, dayKey)
	pipe.ExpireAt(ctx, dayKey, dayStart.Add(dayWindow))
	if _, err := pipe.Exec(ctx); err != nil {
		return l.failOpen(err), nil
	}
	hourly, daily := int(hourIncr.Val()), int(dayIncr.Val())

	if hourly <= l.limits.Hourly && daily <= l.limits.Daily {
		return Limit{
			CanSend:         true,
			HourlyRemaining: remaining(l.limits.Hourly, hourly),
			DailyRemaining:  remaining(l.limits.Daily, daily),
		}, nil
	}

	// Refused sends do not count against the window.
	undo := l.client.TxPipeline()
	undo.Decr(ctx, hourKey)
	undo.Decr(ctx, dayKey)
	if _, err := undo.Exec(ctx); err != nil {
		l.logger.Warn("rate limit rollback failed", "error", err)
	}
	hourly--
	daily--

	if daily >= l.limits.Daily {
		return Limit{
			HourlyRemaining: remaining(l.limits.Hourly, hourly),
			NextAllowedTime: dayStart.Add(dayWindow),
		}, nil
	}
	return Limit{
		DailyRemaining:  remaining(l.limits.Daily, daily),
		NextAllowedTime: hourStart.Add(time.Hour),
	}, nil
}

func (l *RedisLimiter) failOpen(err error) Limit {
	l.logger.Warn("rate limit check failed, allowing send", "error", err)
	return Limit{
		CanSend:         true,
		HourlyRemaining: l.limits.Hourly,
		DailyRemaining:  l.limits.Daily,
	}
}
