// Package yahoo provides a client for the public Yahoo Finance endpoints,
// the keyless fallback provider. No credentials are required, so this
// provider is always eligible.
package yahoo

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aristath/marketbrief/internal/domain"
	"github.com/aristath/marketbrief/internal/history"
	"github.com/rs/zerolog"
)

const providerName = "yahoo"

// Yahoo rejects requests without a browser-looking User-Agent
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

const quoteFields = "symbol,currency,regularMarketPrice,regularMarketPreviousClose," +
	"fiftyTwoWeekHigh,fiftyTwoWeekLow,shortName,longName,regularMarketTime"

// Client is a Yahoo Finance API client
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: "https://query1.finance.yahoo.com",
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []map[string]interface{} `json:"result"`
		Error  interface{}              `json:"error"`
	} `json:"quoteResponse"`
}

// QuoteInfo fetches the v7 quote fields for one symbol as a raw field map
func (c *Client) QuoteInfo(symbol string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("symbols", symbol)
	params.Set("fields", quoteFields)

	body, err := c.get("/v7/finance/quote?"+params.Encode(), symbol)
	if err != nil {
		return nil, err
	}

	var result quoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, c.malformed(symbol, fmt.Errorf("failed to parse response: %w", err))
	}
	if result.QuoteResponse.Error != nil {
		return nil, c.malformed(symbol, fmt.Errorf("API error: %v", result.QuoteResponse.Error))
	}
	if len(result.QuoteResponse.Result) == 0 {
		return nil, &domain.AdapterError{
			Kind:     domain.ErrorKindNotFound,
			Provider: providerName,
			Subject:  symbol,
			Err:      fmt.Errorf("no quote data returned"),
		}
	}
	return result.QuoteResponse.Result[0], nil
}

// Chart fetches daily close bars from the v8 chart endpoint. The range only
// needs to reach back to the start of the current month, so 3mo is plenty.
func (c *Client) Chart(symbol string) ([]history.Bar, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", "3mo")

	body, err := c.get("/v8/finance/chart/"+url.PathEscape(symbol)+"?"+params.Encode(), symbol)
	if err != nil {
		return nil, err
	}

	var result struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Close []float64 `json:"close"`
						High  []float64 `json:"high"`
						Low   []float64 `json:"low"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
			Error interface{} `json:"error"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, c.malformed(symbol, fmt.Errorf("failed to parse response: %w", err))
	}
	if result.Chart.Error != nil {
		return nil, c.malformed(symbol, fmt.Errorf("API error: %v", result.Chart.Error))
	}
	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		c.log.Debug().Str("symbol", symbol).Msg("No chart data returned")
		return nil, nil
	}

	chart := result.Chart.Result[0]
	quote := chart.Indicators.Quote[0]

	bars := make([]history.Bar, 0, len(chart.Timestamp))
	for i, ts := range chart.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == 0 {
			// Yahoo pads holidays with zeroed entries
			continue
		}
		bar := history.Bar{
			Date:  time.Unix(ts, 0).UTC(),
			Close: quote.Close[i],
		}
		if i < len(quote.High) {
			bar.High = quote.High[i]
		}
		if i < len(quote.Low) {
			bar.Low = quote.Low[i]
		}
		bars = append(bars, bar)
	}
	history.Sort(bars)
	return bars, nil
}

// ExchangeRate fetches the spot rate via the FROMTO=X synthetic ticker
func (c *Client) ExchangeRate(from, to string) (float64, error) {
	ticker := from + to + "=X"
	info, err := c.QuoteInfo(ticker)
	if err != nil {
		return 0, err
	}

	price := getFloat64(info, "regularMarketPrice")
	if price == nil {
		price = getFloat64(info, "regularMarketPreviousClose")
	}
	if price == nil || *price <= 0 {
		return 0, c.malformed(ticker, fmt.Errorf("no usable rate in response"))
	}
	return *price, nil
}

func (c *Client) get(pathAndQuery, subject string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return nil, c.malformed(subject, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.AdapterError{
			Kind:     domain.ErrorKindTransientNetwork,
			Provider: providerName,
			Subject:  subject,
			Err:      err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.AdapterError{
			Kind:     classifyStatus(resp.StatusCode),
			Provider: providerName,
			Subject:  subject,
			Err:      fmt.Errorf("API returned status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.AdapterError{
			Kind:     domain.ErrorKindTransientNetwork,
			Provider: providerName,
			Subject:  subject,
			Err:      fmt.Errorf("failed to read response body: %w", err),
		}
	}
	return body, nil
}

func (c *Client) malformed(subject string, err error) error {
	return &domain.AdapterError{
		Kind:     domain.ErrorKindMalformedResponse,
		Provider: providerName,
		Subject:  subject,
		Err:      err,
	}
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

// Helper functions to safely extract values from the quote field map

func getFloat64(m map[string]interface{}, key string) *float64 {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case float64:
			return &v
		case int:
			f := float64(v)
			return &f
		case int64:
			f := float64(v)
			return &f
		}
	}
	return nil
}

func getString(m map[string]interface{}, key string) string {
	if val, ok := m[key]; ok && val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}
