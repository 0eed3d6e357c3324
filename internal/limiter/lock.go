package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobLock is a best-effort mutual exclusion for scheduled jobs across
// instances. A nil *JobLock always grants the lock.
type JobLock struct {
	redis redis.UniversalClient
}

func NewJobLock(redisClient redis.UniversalClient) *JobLock {
	return &JobLock{redis: redisClient}
}

// Acquire tries to take the lock for name. When acquired is false another
// holder owns it. release is always safe to call.
func (l *JobLock) Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context), acquired bool, err error) {
	noop := func(context.Context) {}
	if l == nil || l.redis == nil {
		return noop, true, nil
	}

	key := "tally:job-lock:" + name
	token := uuid.NewString()

	ok, err := l.redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return noop, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return noop, false, nil
	}

	return func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.redis, []string{key}, token).Err()
	}, true, nil
}
