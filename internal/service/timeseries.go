package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"currency-gateway/internal/currencies"
	"currency-gateway/internal/models"
	"currency-gateway/internal/upstream"
)

const dateLayout = "2006-01-02"

// GetSeries assembles per-date rates for every target across the range.
// The end date is always part of the series, even off the step cadence.
// Points that cannot be resolved are omitted, never zeroed or errored.
func (r *Resolver) GetSeries(ctx context.Context, base string, targets []string, start, end time.Time, step int) (*models.TimeSeries, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	isCryptoBase := r.checker.IsCrypto(base)
	if step < 1 {
		step = 1
	}

	dates := enumerateDates(start, end, step)
	today := r.now().UTC().Format(dateLayout)

	series := make(map[string]map[string]float64)
	kept := make([]string, 0, len(targets))
	var lastUpdated string

	// Historical prices of a crypto base, one pivot lookup per date.
	basePrices := make(map[string]float64)

	for _, raw := range dedupeUpper(targets) {
		targetType := r.checker.Classify(raw)
		if targetType == currencies.Unknown {
			continue
		}
		target := raw
		kept = append(kept, target)
		points := make(map[string]float64, len(dates))

		keys := make([]string, len(dates))
		for i, d := range dates {
			keys[i] = r.seriesKey(base, target, d, today)
		}

		cached, err := r.store.GetBatch(ctx, "", keys)
		if err != nil {
			log.Printf("series cache read failed (%s/%s): %v", base, target, err)
			cached = map[string]*float64{}
		}

		for i, d := range dates {
			if v := cached[keys[i]]; v != nil {
				points[d] = *v
				r.metrics.CountCache(true)
				continue
			}
			r.metrics.CountCache(false)

			value, updated, err := r.resolvePoint(ctx, base, isCryptoBase, target, targetType == currencies.Crypto, d, d == today, basePrices)
			if err != nil {
				log.Printf("series point failed %s/%s@%s: %v", base, target, d, err)
				continue
			}
			if lastUpdated == "" && updated != "" {
				lastUpdated = updated
			}

			points[d] = value
			if d == today {
				r.writePoint(ctx, keys[i], value, r.cfg.LatestTTL)
			} else {
				// Past dates never change, keep them forever.
				r.writePoint(ctx, keys[i], value, 0)
			}
		}

		series[target] = points
	}

	return &models.TimeSeries{
		Meta: models.TimeSeriesMeta{
			Base:        base,
			Targets:     kept,
			Step:        step,
			LastUpdated: lastUpdated,
		},
		Series: series,
	}, nil
}

func (r *Resolver) seriesKey(base, target, date, today string) string {
	if date == today {
		return latestPrefix + ":" + base + ":" + target
	}
	return historicalPrefix + ":" + date + ":" + base + ":" + target
}

func (r *Resolver) writePoint(ctx context.Context, key string, value float64, ttl time.Duration) {
	if err := r.store.Set(ctx, key, value, ttl); err != nil {
		log.Printf("cache write failed for %s: %v", key, err)
	}
}

func (r *Resolver) resolvePoint(
	ctx context.Context,
	base string,
	isCryptoBase bool,
	target string,
	isCryptoTarget bool,
	date string,
	isToday bool,
	basePrices map[string]float64,
) (float64, string, error) {
	prov := r.provider
	if isCryptoTarget {
		prov = r.cryptoProvider
	}

	apiBase := base
	if isCryptoBase {
		apiBase = pivotBase
	}

	quote, err := r.quoteAt(ctx, prov, apiBase, []string{target}, date, isToday)
	kind := "fiat"
	if isCryptoTarget {
		kind = "crypto"
	}
	r.metrics.CountUpstream(kind, err)
	if err != nil {
		return 0, "", err
	}

	raw, ok := quote.Rates[target]
	if !ok {
		return 0, "", fmt.Errorf("%w: %s not in response", upstream.ErrUpstream, target)
	}

	value := raw
	if isCryptoTarget {
		value = invert(raw)
	}

	if isCryptoBase {
		price, err := r.basePriceAt(ctx, base, date, isToday, basePrices)
		if err != nil {
			return 0, "", err
		}
		value *= price
	}

	return value, quote.LastUpdated, nil
}

// basePriceAt returns the USD price of a crypto base for a given date,
// memoized across the series call.
func (r *Resolver) basePriceAt(ctx context.Context, base, date string, isToday bool, memo map[string]float64) (float64, error) {
	if price, ok := memo[date]; ok {
		return price, nil
	}

	quote, err := r.quoteAt(ctx, r.cryptoProvider, pivotBase, []string{base}, date, isToday)
	r.metrics.CountUpstream("crypto", err)
	if err != nil {
		return 0, err
	}

	price := quote.Rates[base]
	if price == 0 {
		return 0, fmt.Errorf("%w: no pivot price for %s on %s", upstream.ErrUpstream, base, date)
	}
	memo[date] = price
	return price, nil
}

func (r *Resolver) quoteAt(ctx context.Context, prov upstream.Provider, base string, symbols []string, date string, isToday bool) (*upstream.Quote, error) {
	if isToday {
		return prov.Latest(ctx, base, symbols)
	}
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, err
	}
	return prov.Historical(ctx, day, base, symbols)
}

func enumerateDates(start, end time.Time, step int) []string {
	start = start.UTC().Truncate(24 * time.Hour)
	end = end.UTC().Truncate(24 * time.Hour)

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, step) {
		dates = append(dates, d.Format(dateLayout))
	}

	// The end date is always the last point, even off cadence.
	endStr := end.Format(dateLayout)
	if len(dates) == 0 || dates[len(dates)-1] != endStr {
		dates = append(dates, endStr)
	}
	return dates
}
