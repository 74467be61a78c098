package mutations

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/substrate-hq/substrate/internal/config"
)

// groupLimiter hands out one token bucket per rate-limit key. Keys are group
// IDs when the mutation carries one, actor IDs otherwise, so a noisy tenant
// cannot starve the rest.
type groupLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newGroupLimiter(cfg config.RateLimitConfig) *groupLimiter {
	return &groupLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(cfg.MutationsPerSecond),
		burst:    cfg.MutationBurst,
	}
}

// Allow reports whether the key may proceed right now.
func (g *groupLimiter) Allow(key string) bool {
	g.mu.Lock()
	limiter, ok := g.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(g.rps, g.burst)
		g.limiters[key] = limiter
	}
	g.mu.Unlock()
	return limiter.Allow()
}
