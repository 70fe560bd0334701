package payment

import (
	"context"
	"sync"
	"time"

	"github.com/ghost-db/flowpay/internal/domain"
)

// MemoryReplayGuard is an in-process domain.ReplayGuard for single-instance
// deployments and tests. Multi-instance deployments should use the Redis
// implementation so nonces are shared.
type MemoryReplayGuard struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	clock func() time.Time
}

// NewMemoryReplayGuard creates an empty guard.
func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{
		seen:  make(map[string]time.Time),
		clock: time.Now,
	}
}

// Register remembers a nonce for ttl. It returns domain.ErrReplayDetected if
// the nonce is already registered and has not expired.
func (g *MemoryReplayGuard) Register(_ context.Context, nonce string, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()

	// Opportunistic sweep of expired entries.
	for n, expiry := range g.seen {
		if now.After(expiry) {
			delete(g.seen, n)
		}
	}

	if expiry, ok := g.seen[nonce]; ok && now.Before(expiry) {
		return domain.ErrReplayDetected
	}

	g.seen[nonce] = now.Add(ttl)
	return nil
}

// Compile-time interface check.
var _ domain.ReplayGuard = (*MemoryReplayGuard)(nil)
