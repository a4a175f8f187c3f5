// Package cache holds the Redis-backed login throttle.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginAttemptsPrefix = "login_attempts:"

// LoginLimiter counts failed logins per username in Redis. Once a username
// reaches MaxAttempts failures it is locked until the counter expires,
// Cooldown after the most recent failure. A nil *LoginLimiter never limits.
type LoginLimiter struct {
	rdb         redis.Cmdable
	maxAttempts int64
	cooldown    time.Duration
}

func NewLoginLimiter(rdb redis.Cmdable, maxAttempts int, cooldown time.Duration) *LoginLimiter {
	return &LoginLimiter{rdb: rdb, maxAttempts: int64(maxAttempts), cooldown: cooldown}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func key(username string) string {
	return loginAttemptsPrefix + strings.ToLower(username)
}

// Locked reports whether username is locked out and for how long.
func (l *LoginLimiter) Locked(ctx context.Context, username string) (time.Duration, bool, error) {
	if l == nil {
		return 0, false, nil
	}
	attempts, err := l.rdb.Get(ctx, key(username)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read login attempts: %w", err)
	}
	if attempts < l.maxAttempts {
		return 0, false, nil
	}
	ttl, err := l.rdb.TTL(ctx, key(username)).Result()
	if err != nil {
		return 0, false, fmt.Errorf("read login cooldown: %w", err)
	}
	if ttl < 0 {
		ttl = l.cooldown
	}
	return ttl, true, nil
}

// Fail records a failed attempt and returns how many attempts remain.
func (l *LoginLimiter) Fail(ctx context.Context, username string) (int64, error) {
	if l == nil {
		return 0, nil
	}
	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key(username))
	pipe.Expire(ctx, key(username), l.cooldown)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("record login failure: %w", err)
	}
	remaining := l.maxAttempts - incr.Val()
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the failure count after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, username string) error {
	if l == nil {
		return nil
	}
	return l.rdb.Del(ctx, key(username)).Err()
}
