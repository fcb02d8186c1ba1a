package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const coinGeckoDefaultURL = "https://api.coingecko.com/api/v3"

// Ticker to CoinGecko coin id for the coins the gateway classifies.
// Tickers missing here fall back to their lower-cased form, which works
// for coins whose id equals the ticker.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"BNB":   "binancecoin",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"SOL":   "solana",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"TRX":   "tron",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"ATOM":  "cosmos",
	"XMR":   "monero",
	"XLM":   "stellar",
	"BCH":   "bitcoin-cash",
	"SHIB":  "shiba-inu",
	"TON":   "the-open-network",
	"NEAR":  "near",
	"UNI":   "uniswap",
	"DAI":   "dai",
}

// CoinGecko serves the crypto target group. Prices come back as
// "base units per coin", which is exactly the crypto leg of the Quote
// convention, so no translation happens here.
type CoinGecko struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewCoinGecko(baseURL, apiKey string, timeout time.Duration) *CoinGecko {
	if baseURL == "" {
		baseURL = coinGeckoDefaultURL
	}
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func coinID(ticker string) string {
	if id, ok := coinIDs[strings.ToUpper(ticker)]; ok {
		return id
	}
	return strings.ToLower(ticker)
}

func (c *CoinGecko) Latest(ctx context.Context, base string, symbols []string) (*Quote, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: coingecko needs explicit symbols", ErrUpstream)
	}

	vs := strings.ToLower(base)
	ids := make([]string, len(symbols))
	for i, s := range symbols {
		ids[i] = coinID(s)
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", vs)
	if c.apiKey != "" {
		query.Set("x_cg_demo_api_key", c.apiKey)
	}

	endpoint := c.baseURL + "/simple/price?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: coingecko status %d", ErrUpstream, resp.StatusCode)
	}

	var parsed map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}

	rates := make(map[string]float64, len(symbols))
	for i, s := range symbols {
		if prices, ok := parsed[ids[i]]; ok {
			if price, ok := prices[vs]; ok {
				rates[strings.ToUpper(s)] = price
			}
		}
	}
	return &Quote{Rates: rates}, nil
}

func (c *CoinGecko) Historical(ctx context.Context, date time.Time, base string, symbols []string) (*Quote, error) {
	vs := strings.ToLower(base)
	rates := make(map[string]float64, len(symbols))

	// One call per coin, the history endpoint has no batch form.
	for _, s := range symbols {
		query := url.Values{}
		query.Set("date", date.Format("02-01-2006"))
		if c.apiKey != "" {
			query.Set("x_cg_demo_api_key", c.apiKey)
		}

		endpoint := c.baseURL + "/coins/" + coinID(s) + "/history?" + query.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}

		var parsed struct {
			MarketData struct {
				CurrentPrice map[string]float64 `json:"current_price"`
			} `json:"market_data"`
		}
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
		}

		if price, ok := parsed.MarketData.CurrentPrice[vs]; ok {
			rates[strings.ToUpper(s)] = price
		}
	}

	if len(rates) == 0 {
		return nil, fmt.Errorf("%w: no historical prices for %s", ErrUpstream, date.Format("2006-01-02"))
	}
	return &Quote{Rates: rates}, nil
}
