package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const currencyAPIDefaultURL = "https://api.freecurrencyapi.com/v1"

// CurrencyAPI talks to a freecurrencyapi-compatible endpoint. It quotes
// fiat symbols as target-per-base and crypto tickers as a price in base.
type CurrencyAPI struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewCurrencyAPI(baseURL, apiKey string, timeout time.Duration) *CurrencyAPI {
	if baseURL == "" {
		baseURL = currencyAPIDefaultURL
	}
	return &CurrencyAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type currencyAPIResponse struct {
	Data map[string]float64 `json:"data"`
	Meta struct {
		LastUpdated string `json:"last_updated_at"`
	} `json:"meta"`
}

func (c *CurrencyAPI) Latest(ctx context.Context, base string, symbols []string) (*Quote, error) {
	query := url.Values{}
	query.Set("base_currency", strings.ToUpper(base))
	if len(symbols) > 0 {
		query.Set("currencies", strings.Join(symbols, ","))
	}
	return c.fetch(ctx, "/latest", query)
}

func (c *CurrencyAPI) Historical(ctx context.Context, date time.Time, base string, symbols []string) (*Quote, error) {
	query := url.Values{}
	query.Set("base_currency", strings.ToUpper(base))
	query.Set("date", date.Format("2006-01-02"))
	if len(symbols) > 0 {
		query.Set("currencies", strings.Join(symbols, ","))
	}
	return c.fetch(ctx, "/historical", query)
}

func (c *CurrencyAPI) fetch(ctx context.Context, path string, query url.Values) (*Quote, error) {
	if c.apiKey != "" {
		query.Set("apikey", c.apiKey)
	}
	endpoint := c.baseURL + path + "?" + query.Encode()

	var parsed currencyAPIResponse
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return fmt.Errorf("status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("status %d", resp.StatusCode))
			}

			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s%s: %v", ErrUpstream, c.baseURL, path, err)
	}

	return &Quote{Rates: parsed.Data, LastUpdated: parsed.Meta.LastUpdated}, nil
}
