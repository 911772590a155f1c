package verify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix  = "phoneverify:code:"
	redisMaxRetries = 50
	redisScanCount  = 100

	fieldCode      = "code"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"
	fieldOwner     = "owner"
)

// Expired entries are kept this long past ExpiresAt so confirm can still
// report Expired instead of NotFound. The sweeper removes them earlier.
const redisRetention = time.Hour

// ErrConflict is returned when an optimistic transaction keeps losing races.
var ErrConflict = errors.New("verify: too many concurrent updates")

// RedisStore is a Store shared by every instance pointed at the same Redis.
// Each entry is a hash; updates use WATCH/MULTI transactions.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore on client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(phone string) string { return redisKeyPrefix + phone }

func (s *RedisStore) Put(ctx context.Context, phone string, e Entry) error {
	key := redisKey(phone)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		writeEntry(ctx, pipe, key, e)
		return nil
	})
	if err != nil {
		return fmt.Errorf("verify: put: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, phone string) (Entry, bool, error) {
	m, err := s.client.HGetAll(ctx, redisKey(phone)).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("verify: get: %w", err)
	}
	return decodeEntry(m)
}

func (s *RedisStore) RecordFailedAttempt(ctx context.Context, phone string) (Entry, bool, error) {
	var (
		out   Entry
		found bool
	)
	err := s.Update(ctx, phone, func(e *Entry, ok bool) Mutation {
		out, found = Entry{}, false
		if !ok {
			return Keep
		}
		e.Attempts++
		out, found = *e, true
		return Save
	})
	return out, found, err
}

func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	if err := s.client.Del(ctx, redisKey(phone)).Err(); err != nil {
		return fmt.Errorf("verify: delete: %w", err)
	}
	return nil
}

func (s *RedisStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		phone := iter.Val()[len(redisKeyPrefix):]
		var hit bool
		err := s.Update(ctx, phone, func(e *Entry, ok bool) Mutation {
			hit = ok && e.Expired(now)
			if hit {
				return Remove
			}
			return Keep
		})
		if err != nil {
			return removed, err
		}
		if hit {
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("verify: sweep: %w", err)
	}
	return removed, nil
}

func (s *RedisStore) Update(ctx context.Context, phone string, fn UpdateFunc) error {
	key := redisKey(phone)
	txf := func(tx *redis.Tx) error {
		m, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		e, ok, err := decodeEntry(m)
		if err != nil {
			return err
		}
		switch fn(&e, ok) {
		case Save:
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				writeEntry(ctx, pipe, key, e)
				return nil
			})
		case Remove:
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
		}
		return err
	}

	for range redisMaxRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("verify: update: %w", err)
		}
		return nil
	}
	return ErrConflict
}

func writeEntry(ctx context.Context, pipe redis.Pipeliner, key string, e Entry) {
	pipe.HSet(ctx, key,
		fieldCode, e.Code,
		fieldExpiresAt, e.ExpiresAt.UnixMilli(),
		fieldAttempts, e.Attempts,
		fieldOwner, e.OwnerID,
	)
	pipe.PExpireAt(ctx, key, e.ExpiresAt.Add(redisRetention))
}

func decodeEntry(m map[string]string) (Entry, bool, error) {
	if len(m) == 0 {
		return Entry{}, false, nil
	}
	expires, err := strconv.ParseInt(m[fieldExpiresAt], 10, 64)
	if err != nil {
		return Entry{}, false, fmt.Errorf("verify: decode %s: %w", fieldExpiresAt, err)
	}
	attempts, err := strconv.Atoi(m[fieldAttempts])
	if err != nil {
		return Entry{}, false, fmt.Errorf("verify: decode %s: %w", fieldAttempts, err)
	}
	return Entry{
		Code:      m[fieldCode],
		ExpiresAt: time.UnixMilli(expires),
		Attempts:  attempts,
		OwnerID:   m[fieldOwner],
	}, true, nil
}
