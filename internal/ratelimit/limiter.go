// Package ratelimit throttles outbound dial attempts.
package ratelimit

import "context"

// Limiter controls how many dials may start per second, per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}
