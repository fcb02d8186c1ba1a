package upstream

import (
	"context"
	"errors"
	"time"
)

// ErrUpstream marks any provider failure (network, non-200, bad payload).
// The resolver degrades to partial results when it sees this.
var ErrUpstream = errors.New("upstream provider error")

// Quote is a raw provider response. Value convention: fiat symbols are
// quoted as "target units per one unit of base"; crypto symbols are quoted
// as a price, "base units per one coin". The resolver normalizes both to
// the target-per-base form before caching.
type Quote struct {
	Rates       map[string]float64
	LastUpdated string
}

type Provider interface {
	// Latest returns current quotes against base. An empty symbols slice
	// requests the provider's full rate table.
	Latest(ctx context.Context, base string, symbols []string) (*Quote, error)
	// Historical returns quotes for a past calendar date.
	Historical(ctx context.Context, date time.Time, base string, symbols []string) (*Quote, error)
}
