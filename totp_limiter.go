package crossAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// totpLimiter throttles TOTP verification attempts per user. Counters live
// in Redis so all engine instances share the same budget.
type totpLimiter struct {
	redis       *redis.Client
	prefix      string
	maxAttempts int
	cooldown    time.Duration
}

func newTOTPLimiter(redisClient *redis.Client, prefix string, maxAttempts int, cooldown time.Duration) *totpLimiter {
	return &totpLimiter{
		redis:       redisClient,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		cooldown:    cooldown,
	}
}

func (l *totpLimiter) key(userID string) string {
	return l.prefix + ":att:" + userID
}

func (l *totpLimiter) Check(ctx context.Context, userID string) error {
	count, err := l.redis.Get(ctx, l.key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}
	if count >= int64(l.maxAttempts) {
		return ErrMFARateLimited
	}
	return nil
}

func (l *totpLimiter) RecordFailure(ctx context.Context, userID string) error {
	count, err := l.redis.Incr(ctx, l.key(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(userID), l.cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
		}
	}
	if count >= int64(l.maxAttempts) {
		return ErrMFARateLimited
	}
	return nil
}

func (l *totpLimiter) Reset(ctx context.Context, userID string) error {
	if err := l.redis.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}
	return nil
}
