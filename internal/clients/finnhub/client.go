// Package finnhub provides a client for the Finnhub stock API, the primary
// market data provider. Requires an API key.
package finnhub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/aristath/marketbrief/internal/clientdata"
	"github.com/aristath/marketbrief/internal/domain"
	"github.com/rs/zerolog"
)

const providerName = "finnhub"

// Client is a Finnhub REST API client
type Client struct {
	baseURL   string
	apiKey    string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new Finnhub client.
// cacheRepo is optional - if nil, profile caching is disabled.
func NewClient(apiKey string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   "https://finnhub.io/api/v1",
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 15 * time.Second},
		log:       log.With().Str("client", "finnhub").Logger(),
		cacheRepo: cacheRepo,
	}
}

// quoteResponse is the /quote payload. A c of 0 means Finnhub does not know
// the symbol.
type quoteResponse struct {
	Current   float64 `json:"c"`
	PrevClose float64 `json:"pc"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Timestamp int64   `json:"t"`
}

// profileResponse is the /stock/profile2 payload, identity metadata only
type profileResponse struct {
	Currency string `json:"currency"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

// candleResponse is the /stock/candle payload. S is "ok" or "no_data".
type candleResponse struct {
	Status     string    `json:"s"`
	Timestamps []int64   `json:"t"`
	Closes     []float64 `json:"c"`
	Highs      []float64 `json:"h"`
	Lows       []float64 `json:"l"`
}

// ratesResponse is the /forex/rates payload
type ratesResponse struct {
	Base  string             `json:"base"`
	Quote map[string]float64 `json:"quote"`
}

// Quote fetches the current snapshot for a symbol
func (c *Client) Quote(symbol string) (*quoteResponse, error) {
	var quote quoteResponse
	params := url.Values{"symbol": {symbol}}
	if err := c.get("/quote", params, symbol, &quote); err != nil {
		return nil, err
	}
	if quote.Current == 0 {
		// Finnhub answers unknown symbols with an all-zero quote
		return nil, &domain.AdapterError{
			Kind:     domain.ErrorKindNotFound,
			Provider: providerName,
			Subject:  symbol,
			Err:      fmt.Errorf("empty quote"),
		}
	}
	return &quote, nil
}

// Profile fetches identity metadata for a symbol, cache-first. A stale cache
// entry is used when the API call fails; identity data ages well.
func (c *Client) Profile(symbol string) (*clientdata.InstrumentMeta, error) {
	if c.cacheRepo != nil {
		meta, err := c.cacheRepo.GetIfFresh(providerName, symbol)
		if err == nil && meta != nil {
			c.log.Debug().Str("symbol", symbol).Msg("Profile cache hit")
			return meta, nil
		}
	}

	var profile profileResponse
	params := url.Values{"symbol": {symbol}}
	if err := c.get("/stock/profile2", params, symbol, &profile); err != nil {
		if c.cacheRepo != nil {
			if stale, staleErr := c.cacheRepo.Get(providerName, symbol); staleErr == nil && stale != nil {
				c.log.Warn().Err(err).Str("symbol", symbol).Msg("Profile fetch failed, using stale cached metadata")
				return stale, nil
			}
		}
		return nil, err
	}

	meta := &clientdata.InstrumentMeta{
		Symbol:   symbol,
		Currency: profile.Currency,
		Name:     profile.Name,
		Exchange: profile.Exchange,
	}
	if c.cacheRepo != nil && profile.Currency != "" {
		if err := c.cacheRepo.Store(providerName, symbol, *meta, c.cacheRepo.MetaTTL()); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache profile")
		}
	}
	return meta, nil
}

// Candles fetches daily bars between from and to (unix seconds).
// Returns nil bars without error when Finnhub has no history for the symbol.
func (c *Client) Candles(symbol string, from, to int64) (*candleResponse, error) {
	params := url.Values{
		"symbol":     {symbol},
		"resolution": {"D"},
		"from":       {fmt.Sprintf("%d", from)},
		"to":         {fmt.Sprintf("%d", to)},
	}
	var candles candleResponse
	if err := c.get("/stock/candle", params, symbol, &candles); err != nil {
		return nil, err
	}
	if candles.Status != "ok" {
		c.log.Debug().Str("symbol", symbol).Str("status", candles.Status).Msg("No candle data")
		return nil, nil
	}
	return &candles, nil
}

// Rate fetches the spot conversion rate between two currencies
func (c *Client) Rate(from, to string) (float64, error) {
	pair := from + "/" + to
	var rates ratesResponse
	if err := c.get("/forex/rates", url.Values{"base": {from}}, pair, &rates); err != nil {
		return 0, err
	}

	rate, ok := rates.Quote[to]
	if !ok || rate <= 0 {
		return 0, &domain.AdapterError{
			Kind:     domain.ErrorKindMalformedResponse,
			Provider: providerName,
			Subject:  pair,
			Err:      fmt.Errorf("rate for %s missing from response", to),
		}
	}
	return rate, nil
}

// get performs a GET request and decodes the JSON response, classifying
// failures into the adapter error taxonomy.
func (c *Client) get(path string, params url.Values, subject string, out interface{}) error {
	params.Set("token", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	resp, err := c.client.Get(reqURL)
	if err != nil {
		return &domain.AdapterError{
			Kind:     domain.ErrorKindTransientNetwork,
			Provider: providerName,
			Subject:  subject,
			Err:      err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.AdapterError{
			Kind:     classifyStatus(resp.StatusCode),
			Provider: providerName,
			Subject:  subject,
			Err:      fmt.Errorf("API returned status %d", resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.AdapterError{
			Kind:     domain.ErrorKindMalformedResponse,
			Provider: providerName,
			Subject:  subject,
			Err:      fmt.Errorf("failed to parse response: %w", err),
		}
	}
	return nil
}

func classifyStatus(status int) domain.ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrorKindAuth
	case http.StatusTooManyRequests:
		return domain.ErrorKindRateLimit
	case http.StatusNotFound:
		return domain.ErrorKindNotFound
	}
	return domain.ErrorKindTransientNetwork
}
