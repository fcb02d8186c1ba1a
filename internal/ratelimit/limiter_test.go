package ratelimit

import (
	"context"
	"testing"
	"time"

	"currency-gateway/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(max int64) (*Limiter, cache.Store) {
	store := cache.NewMemoryStore()
	limiter := NewLimiter(store, Config{
		MaxRequests:   max,
		Window:        time.Minute,
		BlockDuration: time.Hour,
	})
	return limiter, store
}

func TestLimiterAllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(3)

	for i := 1; i <= 3; i++ {
		result := limiter.Check(ctx, "1.2.3.4")
		require.True(t, result.Allowed, "request %d should pass", i)
		assert.Equal(t, int64(i), result.Count)
		assert.False(t, result.Blocked)
	}
}

func TestLimiterBlocksOverLimit(t *testing.T) {
	ctx := context.Background()
	limiter, store := newTestLimiter(3)

	for i := 0; i < 3; i++ {
		limiter.Check(ctx, "1.2.3.4")
	}

	result := limiter.Check(ctx, "1.2.3.4")
	require.False(t, result.Allowed)
	assert.True(t, result.Blocked)
	assert.Equal(t, int64(4), result.Count)
	assert.NotEmpty(t, result.Message)

	blocked, err := store.Exists(ctx, "blocked_ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestLimiterBlockedRequestsDoNotIncrement(t *testing.T) {
	ctx := context.Background()
	limiter, store := newTestLimiter(3)

	for i := 0; i < 4; i++ {
		limiter.Check(ctx, "1.2.3.4")
	}

	// 5th request while blocked: rejected without touching the counter.
	result := limiter.Check(ctx, "1.2.3.4")
	require.False(t, result.Allowed)
	assert.True(t, result.Blocked)

	// The counter still reads 4, so the next increment yields 5.
	n, err := store.Increment(ctx, "rate_limit:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestLimiterTracksClientsIndependently(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(2)

	limiter.Check(ctx, "1.1.1.1")
	limiter.Check(ctx, "1.1.1.1")
	limiter.Check(ctx, "1.1.1.1") // over limit

	result := limiter.Check(ctx, "2.2.2.2")
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(1), result.Count)
}

func TestLimiterUnblockKeepsCounter(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(3)

	for i := 0; i < 4; i++ {
		limiter.Check(ctx, "1.2.3.4")
	}

	// Unblock does not reset the window counter, so the next request
	// is over the limit again and re-blocks.
	require.NoError(t, limiter.Unblock(ctx, "1.2.3.4"))

	result := limiter.Check(ctx, "1.2.3.4")
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(5), result.Count)
}

func TestLimiterResetClearsCounter(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(3)

	for i := 0; i < 4; i++ {
		limiter.Check(ctx, "1.2.3.4")
	}
	require.NoError(t, limiter.Unblock(ctx, "1.2.3.4"))
	require.NoError(t, limiter.Reset(ctx, "1.2.3.4"))

	result := limiter.Check(ctx, "1.2.3.4")
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(1), result.Count)
}

func TestLimiterAdminOpsIdempotent(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(3)

	require.NoError(t, limiter.Reset(ctx, "9.9.9.9"))
	require.NoError(t, limiter.Unblock(ctx, "9.9.9.9"))
}

func TestLimiterFailsOpenWhenStoreDown(t *testing.T) {
	ctx := context.Background()
	limiter := NewLimiter(downStore{}, Config{MaxRequests: 3, Window: time.Minute, BlockDuration: time.Hour})

	result := limiter.Check(ctx, "1.2.3.4")
	assert.True(t, result.Allowed)
}

type downStore struct{}

func (downStore) Get(ctx context.Context, key string) (float64, bool, error) {
	return 0, false, cache.ErrUnavailable
}
func (downStore) Set(ctx context.Context, key string, value float64, ttl time.Duration) error {
	return cache.ErrUnavailable
}
func (downStore) GetBatch(ctx context.Context, prefix string, keys []string) (map[string]*float64, error) {
	return nil, cache.ErrUnavailable
}
func (downStore) SetBatch(ctx context.Context, prefix string, values map[string]float64, ttl time.Duration) error {
	return cache.ErrUnavailable
}
func (downStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, cache.ErrUnavailable
}
func (downStore) SetFlag(ctx context.Context, key string, ttl time.Duration) error {
	return cache.ErrUnavailable
}
func (downStore) Exists(ctx context.Context, key string) (bool, error) {
	return false, cache.ErrUnavailable
}
func (downStore) Delete(ctx context.Context, key string) error {
	return cache.ErrUnavailable
}
