package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"currency-gateway/internal/cache"
	"currency-gateway/internal/currencies"
	"currency-gateway/internal/handlers"
	"currency-gateway/internal/popular"
	"currency-gateway/internal/ratelimit"
	"currency-gateway/internal/service"
	"currency-gateway/internal/upstream"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopProvider struct{}

func (noopProvider) Latest(ctx context.Context, base string, symbols []string) (*upstream.Quote, error) {
	return &upstream.Quote{Rates: map[string]float64{"EUR": 0.9}}, nil
}

func (noopProvider) Historical(ctx context.Context, date time.Time, base string, symbols []string) (*upstream.Quote, error) {
	return &upstream.Quote{Rates: map[string]float64{"EUR": 0.9}}, nil
}

func newTestRouter(adminToken string, ping func(ctx context.Context) error) chi.Router {
	store := cache.NewMemoryStore()
	resolver := service.NewResolver(store, noopProvider{}, nil, currencies.NewClassifier(), nil, nil, service.Config{
		FiatTTL: time.Hour, CryptoTTL: time.Hour, LatestTTL: time.Minute,
	})
	limiter := ratelimit.NewLimiter(store, ratelimit.Config{
		MaxRequests: 100, Window: time.Minute, BlockDuration: time.Hour,
	})
	h := handlers.NewRatesHandler(resolver, limiter, popular.NewTracker(nil))
	return InitRoutes(h, limiter, nil, adminToken, ping)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter("", nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHealthEndpointReportsCacheDown(t *testing.T) {
	router := newTestRouter("", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpointMounted(t *testing.T) {
	router := newTestRouter("", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	router := newTestRouter("secret", nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/ratelimit/reset/1.2.3.4", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/admin/ratelimit/reset/1.2.3.4", nil)
	req.Header.Set("X-Admin-Token", "secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1.2.3.4")

	req = httptest.NewRequest(http.MethodPost, "/admin/ratelimit/unblock/1.2.3.4", nil)
	req.Header.Set("X-Admin-Token", "secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateEndpointsBehindLimiter(t *testing.T) {
	store := cache.NewMemoryStore()
	resolver := service.NewResolver(store, noopProvider{}, nil, currencies.NewClassifier(), nil, nil, service.Config{
		FiatTTL: time.Hour, CryptoTTL: time.Hour, LatestTTL: time.Minute,
	})
	limiter := ratelimit.NewLimiter(store, ratelimit.Config{
		MaxRequests: 1, Window: time.Minute, BlockDuration: time.Hour,
	})
	h := handlers.NewRatesHandler(resolver, limiter, popular.NewTracker(nil))
	router := InitRoutes(h, limiter, nil, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/USD/EUR", nil)
	req.RemoteAddr = "10.0.0.1:50000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/USD/EUR", nil)
	req.RemoteAddr = "10.0.0.1:50000"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Health stays reachable for blocked clients.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.1:50000"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
