package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const windowSeconds = 1

var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

// RedisLimiter is a distributed per-second dial limiter backed by Redis,
// for deployments where several dashboard instances share one provider
// rate budget.
type RedisLimiter struct {
	client      *goredis.Client
	limitPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *goredis.Client, limitPerSec int) (*RedisLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("ratelimit: redis client is required")
	}
	lim := int64(limitPerSec)
	if lim <= 0 {
		lim = defaultLimitPerSec
	}
	return &RedisLimiter{
		client:      client,
		limitPerSec: lim,
		now:         time.Now,
		sleep:       sleepWithContext,
	}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.client == nil {
		return false, fmt.Errorf("ratelimit: limiter is not initialized")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("ratelimit: key is required")
	}

	bucket := fmt.Sprintf("dialrate:%s:%d", key, l.now().UTC().Unix())
	result, err := allowScript.Run(ctx, l.client, []string{bucket}, l.limitPerSec, windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("ratelimit: failed to evaluate limit: %w", err)
	}
	return result == 1, nil
}

func (l *RedisLimiter) Wait(ctx context.Context, key string) error {
	backoff := backoffStep
	for {
		allowed, err := l.Allow(ctx, key)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := l.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff += backoffStep
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}
