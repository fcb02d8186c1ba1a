package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"currency-gateway/internal/cache"
	"currency-gateway/internal/currencies"
	"currency-gateway/internal/popular"
	"currency-gateway/internal/ratelimit"
	"currency-gateway/internal/service"
	"currency-gateway/internal/upstream"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	rates map[string]float64
	err   error
}

func (s *stubProvider) quote(symbols []string) *upstream.Quote {
	out := make(map[string]float64)
	if len(symbols) == 0 {
		for sym, v := range s.rates {
			out[sym] = v
		}
	} else {
		for _, sym := range symbols {
			if v, ok := s.rates[sym]; ok {
				out[sym] = v
			}
		}
	}
	return &upstream.Quote{Rates: out, LastUpdated: "2024-06-15T00:00:00Z"}
}

func (s *stubProvider) Latest(ctx context.Context, base string, symbols []string) (*upstream.Quote, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.quote(symbols), nil
}

func (s *stubProvider) Historical(ctx context.Context, date time.Time, base string, symbols []string) (*upstream.Quote, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.quote(symbols), nil
}

func newTestRouter(prov upstream.Provider, maxRequests int64) chi.Router {
	store := cache.NewMemoryStore()
	resolver := service.NewResolver(store, prov, nil, currencies.NewClassifier(), nil, nil, service.Config{
		FiatTTL: 6 * time.Hour, CryptoTTL: 2 * time.Hour, LatestTTL: 15 * time.Minute,
	})
	limiter := ratelimit.NewLimiter(store, ratelimit.Config{
		MaxRequests: maxRequests, Window: time.Minute, BlockDuration: time.Hour,
	})
	h := NewRatesHandler(resolver, limiter, popular.NewTracker(nil))

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(limiter, nil))
		r.Get("/last/*", h.GetSeries)
		r.Get("/*", h.GetRates)
	})
	return r
}

func doRequest(t *testing.T, router chi.Router, path, userAgent string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:50000"
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]float64 {
	t.Helper()
	var body struct {
		Data map[string]float64 `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data
}

func TestParsePathArgs(t *testing.T) {
	assert.Equal(t, []string{"EUR", "GBP"}, parsePathArgs("eur,gbp"))
	assert.Equal(t, []string{"EUR", "BTC"}, parsePathArgs("eur+btc"))
	assert.Equal(t, []string{"EUR"}, parsePathArgs("EUR"))
	assert.Nil(t, parsePathArgs(""))
}

func TestParseTimeRange(t *testing.T) {
	cases := []struct {
		in      string
		days    int
		wantErr bool
	}{
		{"7d", 7, false},
		{"3m", 90, false},
		{"1y", 365, false},
		{"14", 14, false},
		{"2Y", 730, false},
		{"0d", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, c := range cases {
		days, err := parseTimeRange(c.in)
		if c.wantErr {
			assert.Error(t, err, c.in)
		} else {
			require.NoError(t, err, c.in)
			assert.Equal(t, c.days, days, c.in)
		}
	}
}

func TestAutoStep(t *testing.T) {
	assert.Equal(t, 1, autoStep(7))
	assert.Equal(t, 1, autoStep(90))
	assert.Equal(t, 10, autoStep(91))
	assert.Equal(t, 10, autoStep(365))
	assert.Equal(t, 30, autoStep(366))
}

func TestGetRatesJSON(t *testing.T) {
	router := newTestRouter(&stubProvider{rates: map[string]float64{"EUR": 0.9}}, 100)

	rec := doRequest(t, router, "/USD/EUR", "Mozilla/5.0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	data := decodeData(t, rec)
	assert.InDelta(t, 0.9, data["EUR"], 1e-12)
}

func TestGetRatesSingleSegmentDefaultsToUSD(t *testing.T) {
	router := newTestRouter(&stubProvider{rates: map[string]float64{"EUR": 0.9, "GBP": 0.8}}, 100)

	rec := doRequest(t, router, "/eur,gbp", "Mozilla/5.0")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Contains(t, data, "EUR")
	assert.Contains(t, data, "GBP")
}

func TestGetRatesCurlGetsANSITable(t *testing.T) {
	router := newTestRouter(&stubProvider{rates: map[string]float64{"EUR": 0.9}}, 100)

	rec := doRequest(t, router, "/USD/EUR", "curl/8.4.0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "EUR")
	assert.Contains(t, rec.Body.String(), "\x1b[", "curl output carries ANSI colors")
}

func TestUsageRoutes(t *testing.T) {
	router := newTestRouter(&stubProvider{rates: map[string]float64{}}, 100)

	for _, path := range []string{"/usage", "/help", "/info"} {
		rec := doRequest(t, router, path, "Mozilla/5.0")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "endpoints", path)
	}

	rec := doRequest(t, router, "/usage", "curl/8.4.0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}

func TestGetRatesUpstreamFailure(t *testing.T) {
	router := newTestRouter(&stubProvider{err: upstream.ErrUpstream}, 100)

	rec := doRequest(t, router, "/USD/EUR", "Mozilla/5.0")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "could not resolve rates")
}

func TestGetSeriesValidation(t *testing.T) {
	router := newTestRouter(&stubProvider{rates: map[string]float64{"EUR": 0.9}}, 100)

	cases := []struct {
		path string
		want string
	}{
		{"/last/USD/EUR", "invalid format"},
		{"/last/USD/EUR/abc", "invalid time format"},
		{"/last/USD/EUR/7d/0", "step must be greater than 0"},
		{"/last/USD/EUR/7d/-1", "step must be greater than 0"},
		{"/last/USD/EUR/2y/1", "exceeds maximum"},
	}
	for _, c := range cases {
		rec := doRequest(t, router, c.path, "Mozilla/5.0")
		assert.Equal(t, http.StatusBadRequest, rec.Code, c.path)
		assert.Contains(t, rec.Body.String(), c.want, c.path)
	}
}

func TestGetSeriesJSON(t *testing.T) {
	router := newTestRouter(&stubProvider{rates: map[string]float64{"EUR": 0.9}}, 100)

	rec := doRequest(t, router, "/last/USD/EUR/3d", "Mozilla/5.0")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Meta struct {
				Base    string   `json:"base"`
				Targets []string `json:"targets"`
				Step    int      `json:"step"`
			} `json:"meta"`
			Series map[string]map[string]float64 `json:"series"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "USD", body.Data.Meta.Base)
	assert.Equal(t, []string{"EUR"}, body.Data.Meta.Targets)
	assert.Equal(t, 1, body.Data.Meta.Step)
	assert.Len(t, body.Data.Series["EUR"], 4)
}

func TestRateLimitMiddleware(t *testing.T) {
	router := newTestRouter(&stubProvider{rates: map[string]float64{"EUR": 0.9}}, 2)

	for i := 0; i < 2; i++ {
		rec := doRequest(t, router, "/USD/EUR", "Mozilla/5.0")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(t, router, "/USD/EUR", "Mozilla/5.0")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")

	rec = doRequest(t, router, "/USD/EUR", "curl/8.4.0")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}

func TestRateLimitPerClient(t *testing.T) {
	router := newTestRouter(&stubProvider{rates: map[string]float64{"EUR": 0.9}}, 1)

	req := httptest.NewRequest(http.MethodGet, "/USD/EUR", nil)
	req.RemoteAddr = "10.0.0.1:50000"
	req.Header.Set("X-Forwarded-For", "1.1.1.1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Same remote address, different forwarded client: fresh quota.
	req = httptest.NewRequest(http.MethodGet, "/USD/EUR", nil)
	req.RemoteAddr = "10.0.0.1:50000"
	req.Header.Set("X-Forwarded-For", "2.2.2.2")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "9.9.9.9:1234"
	assert.Equal(t, "9.9.9.9", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	assert.Equal(t, "1.2.3.4", ClientIP(req))
}

func TestIsCurl(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, isCurl(req))

	req.Header.Set("User-Agent", "curl/8.4.0")
	assert.True(t, isCurl(req))

	req.Header.Set("User-Agent", "Mozilla/5.0")
	assert.False(t, isCurl(req))
}

func TestAdminAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	guarded := AdminAuth("secret")(ok)

	req := httptest.NewRequest(http.MethodPost, "/admin/ratelimit/reset/1.2.3.4", nil)
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("X-Admin-Token", "wrong")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("X-Admin-Token", "secret")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// An unset token never grants access, not even to empty headers.
	unguardable := AdminAuth("")(ok)
	req = httptest.NewRequest(http.MethodPost, "/admin/ratelimit/reset/1.2.3.4", nil)
	rec = httptest.NewRecorder()
	unguardable.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
