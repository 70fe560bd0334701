package domain

import (
	"context"
	"time"
)

// ReplayGuard remembers payment nonces so a captured payment proof cannot be
// presented twice. Register returns ErrReplayDetected when the nonce has
// already been seen inside the retention window.
type ReplayGuard interface {
	Register(ctx context.Context, nonce string, ttl time.Duration) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
