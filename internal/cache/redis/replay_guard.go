package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ghost-db/flowpay/internal/domain"
)

// ReplayGuard implements domain.ReplayGuard using Redis SETNX with a TTL.
// Each payment nonce is registered once; a second registration inside the
// retention window means a replayed proof.
type ReplayGuard struct {
	rdb *redis.Client
}

// NewReplayGuard creates a ReplayGuard backed by the given Client.
func NewReplayGuard(c *Client) *ReplayGuard {
	return &ReplayGuard{rdb: c.Underlying()}
}

func nonceKey(nonce string) string {
	return "payment:nonce:" + nonce
}

// Register marks a nonce as used for the given retention window. It returns
// domain.ErrReplayDetected when the nonce was already registered.
func (g *ReplayGuard) Register(ctx context.Context, nonce string, ttl time.Duration) error {
	ok, err := g.rdb.SetNX(ctx, nonceKey(nonce), "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: register nonce: %w", err)
	}
	if !ok {
		return domain.ErrReplayDetected
	}
	return nil
}

// Compile-time interface check.
var _ domain.ReplayGuard = (*ReplayGuard)(nil)
