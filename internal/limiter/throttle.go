// Package limiter holds the Redis-backed per-email throttles and the scheduler job lock.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisUnavailable = errors.New("throttle redis unavailable")

// Throttle purposes
const (
	PurposeResendVerification = "resend-verification"
	PurposeForgotPassword     = "forgot-password"
)

// EmailThrottle is a fixed-window counter per purpose and email.
// A nil *EmailThrottle allows everything.
type EmailThrottle struct {
	redis  redis.UniversalClient
	limit  int64
	window time.Duration
}

func NewEmailThrottle(redisClient redis.UniversalClient, limit int64, window time.Duration) *EmailThrottle {
	return &EmailThrottle{
		redis:  redisClient,
		limit:  limit,
		window: window,
	}
}

// Allow counts one request and reports whether it is within the window's limit
func (t *EmailThrottle) Allow(ctx context.Context, purpose, email string) (bool, error) {
	if t == nil || t.redis == nil {
		return true, nil
	}

	key := throttleKey(purpose, email)

	count, err := t.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := t.redis.Expire(ctx, key, t.window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count <= t.limit, nil
}

func throttleKey(purpose, email string) string {
	return "tally:throttle:" + purpose + ":" + strings.ToLower(strings.TrimSpace(email))
}
