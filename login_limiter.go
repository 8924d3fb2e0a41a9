package crossAuth

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var errLoginThrottleUnavailable = errors.New("login throttle unavailable")

// loginLimiter throttles failed login attempts. Counters are kept per
// identifier and per client IP so a single attacker cannot lock out an
// account from many addresses, nor spray many accounts from one address.
type loginLimiter struct {
	redis  *redis.Client
	config SecurityConfig
}

func newLoginLimiter(redisClient *redis.Client, cfg SecurityConfig) *loginLimiter {
	return &loginLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func loginIdentifierKey(identifier string) string {
	return "lg:id:" + identifier
}

func loginIPKey(ip string) string {
	return "lg:ip:" + ip
}

func (l *loginLimiter) Check(ctx context.Context, identifier, ip string) error {
	if err := l.checkKey(ctx, loginIdentifierKey(identifier)); err != nil {
		return err
	}
	if ip != "" {
		return l.checkKey(ctx, loginIPKey(ip))
	}
	return nil
}

func (l *loginLimiter) checkKey(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", errLoginThrottleUnavailable, err)
	}
	if count >= int64(l.config.MaxLoginAttempts) {
		return ErrLoginRateLimited
	}
	return nil
}

func (l *loginLimiter) RecordFailure(ctx context.Context, identifier, ip string) error {
	if err := l.recordKey(ctx, loginIdentifierKey(identifier)); err != nil {
		return err
	}
	if ip != "" {
		return l.recordKey(ctx, loginIPKey(ip))
	}
	return nil
}

func (l *loginLimiter) recordKey(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errLoginThrottleUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.LoginCooldownDuration).Err(); err != nil {
			return fmt.Errorf("%w: %v", errLoginThrottleUnavailable, err)
		}
	}
	if count > int64(l.config.MaxLoginAttempts) {
		return ErrLoginRateLimited
	}
	return nil
}

func (l *loginLimiter) Reset(ctx context.Context, identifier, ip string) error {
	keys := []string{loginIdentifierKey(identifier)}
	if ip != "" {
		keys = append(keys, loginIPKey(ip))
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", errLoginThrottleUnavailable, err)
	}
	return nil
}
