package popular

import (
	"context"
	"log"
	"time"

	"currency-gateway/internal/service"

	"github.com/redis/go-redis/v9"
)

const popularKey = "popular_bases"

// Tracker counts how often each base currency is requested. Nil-safe so
// the gateway runs without Redis (memory-store mode) unchanged.
type Tracker struct {
	redis *redis.Client
}

func NewTracker(client *redis.Client) *Tracker {
	return &Tracker{redis: client}
}

func (t *Tracker) Bump(ctx context.Context, base string) {
	if t == nil || t.redis == nil {
		return
	}
	if err := t.redis.ZIncrBy(ctx, popularKey, 1, base).Err(); err != nil {
		log.Printf("popularity bump failed for %s: %v", base, err)
	}
}

func (t *Tracker) Top(ctx context.Context, n int) []string {
	if t == nil || t.redis == nil {
		return nil
	}
	bases, err := t.redis.ZRevRange(ctx, popularKey, 0, int64(n-1)).Result()
	if err != nil {
		log.Printf("popularity read failed: %v", err)
		return nil
	}
	return bases
}

// Prewarmer periodically re-resolves the full table for the most
// requested bases so their cache entries stay warm between client hits.
type Prewarmer struct {
	tracker  *Tracker
	resolver *service.Resolver
	interval time.Duration
	topN     int
}

func NewPrewarmer(tracker *Tracker, resolver *service.Resolver, interval time.Duration, topN int) *Prewarmer {
	return &Prewarmer{tracker: tracker, resolver: resolver, interval: interval, topN: topN}
}

func (p *Prewarmer) Start(ctx context.Context) {
	log.Printf("Prewarmer started (interval: %v, top %d bases)", p.interval, p.topN)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.RunOnce(ctx)
		case <-ctx.Done():
			log.Println("Prewarmer stopped")
			return
		}
	}
}

func (p *Prewarmer) RunOnce(ctx context.Context) {
	bases := p.tracker.Top(ctx, p.topN)
	if len(bases) == 0 {
		return
	}

	for _, base := range bases {
		if _, err := p.resolver.GetRates(ctx, base, nil); err != nil {
			log.Printf("prewarm failed for %s: %v", base, err)
			continue
		}
		log.Printf("prewarmed rates for %s", base)
	}
}
