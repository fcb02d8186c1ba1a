package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"currency-gateway/internal/cache"
	"currency-gateway/internal/currencies"
	"currency-gateway/internal/metrics"
	"currency-gateway/internal/models"
	"currency-gateway/internal/upstream"
)

const (
	currencyPrefix   = "currency"
	latestPrefix     = "latest"
	historicalPrefix = "historical"

	// Crypto bases are translated to USD before hitting the upstream,
	// most providers cannot quote a coin as base.
	pivotBase = "USD"
)

// ErrNoData means a request could not be answered at all: no cache hits
// and every upstream sub-fetch failed.
var ErrNoData = errors.New("no rate data available")

// Publisher is the slice of the Kafka producer the resolver needs.
type Publisher interface {
	PublishObjectAsync(key []byte, obj any)
}

type Config struct {
	FiatTTL   time.Duration
	CryptoTTL time.Duration
	LatestTTL time.Duration
}

// Resolver answers rate lookups cache-first and falls back to upstream
// providers for the gaps. All returned values mean "units of target per
// one unit of base".
//
// Crypto bases are resolved through a USD pivot: the provider is queried
// with USD and every value is re-based with the base coin's own USD price.
// That keeps rate(A,B)*rate(B,A) at 1 and cross rates composable, which a
// plain inversion of the USD table does not.
type Resolver struct {
	store          cache.Store
	provider       upstream.Provider
	cryptoProvider upstream.Provider
	checker        *currencies.Classifier
	producer       Publisher
	metrics        *metrics.Metrics
	cfg            Config
	now            func() time.Time
}

func NewResolver(
	store cache.Store,
	provider upstream.Provider,
	cryptoProvider upstream.Provider,
	checker *currencies.Classifier,
	producer Publisher,
	m *metrics.Metrics,
	cfg Config,
) *Resolver {
	if cryptoProvider == nil {
		cryptoProvider = provider
	}
	if cfg.CryptoTTL > cfg.FiatTTL {
		// Crypto caches must never outlive fiat ones.
		cfg.CryptoTTL = cfg.FiatTTL
	}
	return &Resolver{
		store:          store,
		provider:       provider,
		cryptoProvider: cryptoProvider,
		checker:        checker,
		producer:       producer,
		metrics:        m,
		cfg:            cfg,
		now:            time.Now,
	}
}

// invert never divides by zero: a zero raw value stays zero.
func invert(v float64) float64 {
	if v == 0 {
		return v
	}
	return 1 / v
}

func wantsLatest(symbols []string) bool {
	if len(symbols) == 0 {
		return true
	}
	for _, s := range symbols {
		if strings.EqualFold(strings.TrimSpace(s), "LATEST") {
			return true
		}
	}
	return false
}

// GetRates resolves the requested symbols against base. Unknown symbols
// are dropped, not errored; a sub-group fetch failure degrades to partial
// results. The error is non-nil only when nothing at all resolved.
func (r *Resolver) GetRates(ctx context.Context, base string, symbols []string) (models.RateSet, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	isCryptoBase := r.checker.IsCrypto(base)

	ttl := r.cfg.FiatTTL
	if isCryptoBase {
		ttl = r.cfg.CryptoTTL
	}
	prefix := currencyPrefix + ":" + base

	if wantsLatest(symbols) {
		return r.latestTable(ctx, base, isCryptoBase, prefix, ttl)
	}

	targets := dedupeUpper(symbols)

	cached, err := r.store.GetBatch(ctx, prefix, targets)
	if err != nil {
		// Store down: behave as if everything missed.
		log.Printf("cache read failed for %s: %v", prefix, err)
		cached = make(map[string]*float64, len(targets))
		for _, t := range targets {
			cached[t] = nil
		}
	}

	result := make(models.RateSet, len(targets))
	var missing []string
	for _, t := range targets {
		if v := cached[t]; v != nil {
			result[t] = *v
			r.metrics.CountCache(true)
		} else {
			missing = append(missing, t)
			r.metrics.CountCache(false)
		}
	}
	if len(missing) == 0 {
		return result, nil
	}

	var missingCrypto, missingFiat []string
	for _, t := range missing {
		switch r.checker.Classify(t) {
		case currencies.Crypto:
			missingCrypto = append(missingCrypto, t)
		case currencies.Fiat:
			missingFiat = append(missingFiat, t)
		default:
			// Unknown codes are silently dropped, no upstream call.
		}
	}

	var fetched map[string]float64
	var fetchFailed bool
	if len(missingCrypto)+len(missingFiat) > 0 {
		if isCryptoBase {
			fetched, fetchFailed = r.fetchCryptoBase(ctx, base, missingCrypto, missingFiat)
		} else {
			fetched, fetchFailed = r.fetchFiatBase(ctx, base, missingCrypto, missingFiat)
		}
	}

	if len(fetched) > 0 {
		r.writeBatch(ctx, prefix, fetched, ttl)
		for sym, v := range fetched {
			result[sym] = v
		}
	}

	if len(result) == 0 && fetchFailed {
		return nil, fmt.Errorf("%w: base %s", ErrNoData, base)
	}
	return result, nil
}

// fetchFiatBase queries the provider with base directly. Fiat values pass
// through; crypto values come back as a price in base and are inverted.
func (r *Resolver) fetchFiatBase(ctx context.Context, base string, cryptoSyms, fiatSyms []string) (map[string]float64, bool) {
	fetched := make(map[string]float64)
	failed := false

	if len(cryptoSyms) > 0 {
		quote, err := r.cryptoProvider.Latest(ctx, base, cryptoSyms)
		r.metrics.CountUpstream("crypto", err)
		if err != nil {
			log.Printf("crypto fetch failed (base=%s): %v", base, err)
			failed = true
		} else {
			for _, sym := range cryptoSyms {
				if raw, ok := quote.Rates[sym]; ok {
					fetched[sym] = invert(raw)
				}
			}
		}
	}

	if len(fiatSyms) > 0 {
		quote, err := r.provider.Latest(ctx, base, fiatSyms)
		r.metrics.CountUpstream("fiat", err)
		if err != nil {
			log.Printf("fiat fetch failed (base=%s): %v", base, err)
			failed = true
		} else {
			for _, sym := range fiatSyms {
				if raw, ok := quote.Rates[sym]; ok {
					fetched[sym] = raw
				}
			}
		}
	}

	return fetched, failed
}

// fetchCryptoBase resolves through the USD pivot. The crypto call always
// includes the base coin so its price is available for re-basing.
func (r *Resolver) fetchCryptoBase(ctx context.Context, base string, cryptoSyms, fiatSyms []string) (map[string]float64, bool) {
	fetched := make(map[string]float64)
	failed := false

	quote, err := r.cryptoProvider.Latest(ctx, pivotBase, append(append([]string{}, cryptoSyms...), base))
	r.metrics.CountUpstream("crypto", err)
	if err != nil {
		log.Printf("crypto fetch failed (pivot for %s): %v", base, err)
		return nil, true
	}

	basePrice := quote.Rates[base] // USD per one base coin
	if basePrice == 0 {
		log.Printf("no pivot price for base %s", base)
		return nil, true
	}

	for _, sym := range cryptoSyms {
		if raw, ok := quote.Rates[sym]; ok {
			// coins of sym per USD, then re-based to the crypto base
			fetched[sym] = invert(raw) * basePrice
		}
	}

	if len(fiatSyms) > 0 {
		fiatQuote, err := r.provider.Latest(ctx, pivotBase, fiatSyms)
		r.metrics.CountUpstream("fiat", err)
		if err != nil {
			log.Printf("fiat fetch failed (pivot for %s): %v", base, err)
			failed = true
		} else {
			for _, sym := range fiatSyms {
				if raw, ok := fiatQuote.Rates[sym]; ok {
					fetched[sym] = raw * basePrice
				}
			}
		}
	}

	return fetched, failed
}

// latestTable fetches the provider's full rate table and re-expresses it
// against base.
func (r *Resolver) latestTable(ctx context.Context, base string, isCryptoBase bool, prefix string, ttl time.Duration) (models.RateSet, error) {
	apiBase := base
	if isCryptoBase {
		apiBase = pivotBase
	}

	quote, err := r.provider.Latest(ctx, apiBase, nil)
	r.metrics.CountUpstream("latest", err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoData, err)
	}

	rates := make(models.RateSet, len(quote.Rates))

	if !isCryptoBase {
		for sym, raw := range quote.Rates {
			if r.checker.IsCrypto(sym) {
				rates[sym] = invert(raw)
			} else {
				rates[sym] = raw
			}
		}
	} else {
		basePrice := quote.Rates[base]
		if basePrice == 0 {
			return nil, fmt.Errorf("%w: base %s not quoted by upstream", ErrNoData, base)
		}
		for sym, raw := range quote.Rates {
			usd := raw
			if r.checker.IsCrypto(sym) {
				usd = invert(raw)
			}
			rates[sym] = usd * basePrice
		}
	}

	r.writeBatch(ctx, prefix, rates, ttl)
	return rates, nil
}

func (r *Resolver) writeBatch(ctx context.Context, prefix string, rates map[string]float64, ttl time.Duration) {
	if err := r.store.SetBatch(ctx, prefix, rates, ttl); err != nil {
		log.Printf("cache write failed for %s: %v", prefix, err)
	}
	if r.producer != nil {
		r.producer.PublishObjectAsync([]byte(prefix), models.RateUpdate{
			Prefix:     prefix,
			TTLSeconds: int64(ttl / time.Second),
			Rates:      rates,
		})
	}
}

func dedupeUpper(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}
