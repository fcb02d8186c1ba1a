package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"currency-gateway/internal/cache"
	"currency-gateway/internal/models"
)

const (
	ratePrefix    = "rate_limit:"
	blockedPrefix = "blocked_ip:"
)

type Config struct {
	MaxRequests   int64
	Window        time.Duration
	BlockDuration time.Duration
}

// Limiter enforces a per-IP request budget on top of the cache store.
// Two independent keys per client: a counter whose window starts at the
// first request, and a block flag with its own TTL. Blocking does not
// reset the counter; on unblock the client re-enters with whatever count
// is left until the window key expires.
type Limiter struct {
	store cache.Store
	cfg   Config
}

func NewLimiter(store cache.Store, cfg Config) *Limiter {
	return &Limiter{store: store, cfg: cfg}
}

func (l *Limiter) Check(ctx context.Context, ip string) models.RateLimitResult {
	blockedKey := blockedPrefix + ip
	rateKey := ratePrefix + ip

	blocked, err := l.store.Exists(ctx, blockedKey)
	if err != nil {
		// Store down: fail open rather than reject everyone.
		log.Printf("rate limit check failed for %s: %v", ip, err)
		return models.RateLimitResult{Allowed: true}
	}
	if blocked {
		// Do not touch the counter, that would stretch the penalty.
		return models.RateLimitResult{
			Allowed: false,
			Blocked: true,
			Limit:   l.cfg.MaxRequests,
			Message: fmt.Sprintf("IP temporarily blocked, retry after %s", l.cfg.BlockDuration),
		}
	}

	count, err := l.store.Increment(ctx, rateKey, l.cfg.Window)
	if err != nil {
		log.Printf("rate limit increment failed for %s: %v", ip, err)
		return models.RateLimitResult{Allowed: true}
	}

	if count > l.cfg.MaxRequests {
		if err := l.store.SetFlag(ctx, blockedKey, l.cfg.BlockDuration); err != nil {
			log.Printf("failed to set block flag for %s: %v", ip, err)
		}
		return models.RateLimitResult{
			Allowed: false,
			Blocked: true,
			Count:   count,
			Limit:   l.cfg.MaxRequests,
			Message: fmt.Sprintf("rate limit exceeded (%d/%d), blocked for %s", count, l.cfg.MaxRequests, l.cfg.BlockDuration),
		}
	}

	return models.RateLimitResult{
		Allowed: true,
		Count:   count,
		Limit:   l.cfg.MaxRequests,
	}
}

// Reset drops the request counter for an IP. Idempotent.
func (l *Limiter) Reset(ctx context.Context, ip string) error {
	return l.store.Delete(ctx, ratePrefix+ip)
}

// Unblock removes the block flag for an IP. Idempotent.
func (l *Limiter) Unblock(ctx context.Context, ip string) error {
	return l.store.Delete(ctx, blockedPrefix+ip)
}
