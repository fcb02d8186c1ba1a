package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable signals that the backing store could not be reached.
// Callers are expected to treat this as "cache is empty" and carry on.
var ErrUnavailable = errors.New("cache unavailable")

// Store is the single shared mutable resource of the gateway. Rate values
// live under deterministic keys; counters and flags back the rate limiter.
// A zero ttl means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) (float64, bool, error)
	Set(ctx context.Context, key string, value float64, ttl time.Duration) error

	// GetBatch resolves prefix:key for every key (bare keys when prefix is
	// empty). Missing keys are present in the result with a nil value, not
	// omitted.
	GetBatch(ctx context.Context, prefix string, keys []string) (map[string]*float64, error)
	// SetBatch writes all entries in one atomic batch.
	SetBatch(ctx context.Context, prefix string, values map[string]float64, ttl time.Duration) error

	// Increment bumps a counter and starts its ttl window when the counter
	// first reaches 1, so the window begins at the first request.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	SetFlag(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}
