package crossAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// backupCodeLimiter throttles backup code attempts separately from TOTP.
// Backup codes have a much smaller search space than a rotating TOTP
// window, so the counter usually runs with a tighter budget.
type backupCodeLimiter struct {
	redis       *redis.Client
	maxAttempts int
	cooldown    time.Duration
}

func newBackupCodeLimiter(redisClient *redis.Client, cfg TOTPConfig) *backupCodeLimiter {
	return &backupCodeLimiter{
		redis:       redisClient,
		maxAttempts: cfg.BackupCodeMaxAttempts,
		cooldown:    cfg.BackupCodeCooldown,
	}
}

func (l *backupCodeLimiter) key(userID string) string {
	return "abk:att:" + userID
}

func (l *backupCodeLimiter) Check(ctx context.Context, userID string) error {
	count, err := l.redis.Get(ctx, l.key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrBackupCodeUnavailable, err)
	}
	if count >= int64(l.maxAttempts) {
		return ErrBackupCodeRateLimited
	}
	return nil
}

func (l *backupCodeLimiter) RecordFailure(ctx context.Context, userID string) error {
	count, err := l.redis.Incr(ctx, l.key(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackupCodeUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(userID), l.cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrBackupCodeUnavailable, err)
		}
	}
	if count >= int64(l.maxAttempts) {
		return ErrBackupCodeRateLimited
	}
	return nil
}

func (l *backupCodeLimiter) Reset(ctx context.Context, userID string) error {
	if err := l.redis.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackupCodeUnavailable, err)
	}
	return nil
}
