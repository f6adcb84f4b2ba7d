package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultLimitPerSec = 1
	backoffStep        = 10 * time.Millisecond
	backoffMax         = 50 * time.Millisecond
)

// MemoryLimiter is a fixed-window per-second limiter for single-process
// deployments. Counters reset each wall-clock second.
type MemoryLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
	window int64

	limitPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter(limitPerSec int) *MemoryLimiter {
	return newMemoryLimiter(int64(limitPerSec), time.Now, sleepWithContext)
}

func newMemoryLimiter(limitPerSec int64, nowFn func() time.Time, sleepFn func(ctx context.Context, d time.Duration) error) *MemoryLimiter {
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}
	return &MemoryLimiter{
		counts:      make(map[string]int64),
		limitPerSec: limitPerSec,
		now:         nowFn,
		sleep:       sleepFn,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("ratelimit: key is required")
	}

	sec := l.now().UTC().Unix()

	l.mu.Lock()
	defer l.mu.Unlock()
	if sec != l.window {
		l.window = sec
		clear(l.counts)
	}
	if l.counts[key] >= l.limitPerSec {
		return false, nil
	}
	l.counts[key]++
	return true, nil
}

func (l *MemoryLimiter) Wait(ctx context.Context, key string) error {
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

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
