// Package alphavantage provides a client for the Alpha Vantage API, the
// secondary market data provider. Requires an API key.
//
// Alpha Vantage reports most errors inside HTTP 200 bodies; checkAPIError
// recognises those soft failures and maps them onto the adapter error
// taxonomy.
package alphavantage

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/marketbrief/internal/clientdata"
	"github.com/aristath/marketbrief/internal/domain"
	"github.com/aristath/marketbrief/internal/history"
	"github.com/rs/zerolog"
)

const providerName = "alphavantage"

// Client is an Alpha Vantage API client
type Client struct {
	baseURL   string
	apiKey    string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new Alpha Vantage client.
// cacheRepo is optional - if nil, overview metadata caching is disabled.
func NewClient(apiKey string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   "https://www.alphavantage.co/query",
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 15 * time.Second},
		log:       log.With().Str("client", "alphavantage").Logger(),
		cacheRepo: cacheRepo,
	}
}

// GlobalQuote holds the parsed GLOBAL_QUOTE fields this application uses
type GlobalQuote struct {
	Symbol    string
	Price     *float64
	PrevClose *float64
	TradeDay  string
}

// Overview holds the parsed OVERVIEW fields this application uses
type Overview struct {
	Symbol           string
	Name             string
	Currency         string
	Exchange         string
	FiftyTwoWeekHigh *float64
	FiftyTwoWeekLow  *float64
}

// ExchangeRateQuote is the parsed CURRENCY_EXCHANGE_RATE payload
type ExchangeRateQuote struct {
	FromCurrency string
	ToCurrency   string
	Rate         float64
}

// FetchGlobalQuote fetches the current snapshot for a symbol
func (c *Client) FetchGlobalQuote(symbol string) (*GlobalQuote, error) {
	body, err := c.request("GLOBAL_QUOTE", map[string]string{"symbol": symbol}, symbol)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Quote map[string]string `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, c.malformed(symbol, err)
	}
	if len(payload.Quote) == 0 {
		// Unknown symbols come back as an empty Global Quote object
		return nil, &domain.AdapterError{
			Kind:     domain.ErrorKindNotFound,
			Provider: providerName,
			Subject:  symbol,
			Err:      fmt.Errorf("empty global quote"),
		}
	}

	return &GlobalQuote{
		Symbol:    payload.Quote["01. symbol"],
		Price:     parseFloat64Ptr(payload.Quote["05. price"]),
		PrevClose: parseFloat64Ptr(payload.Quote["08. previous close"]),
		TradeDay:  payload.Quote["07. latest trading day"],
	}, nil
}

// FetchOverview fetches company identity and 52-week bounds. Identity fields
// are cached; the bounds are always taken from the live response.
func (c *Client) FetchOverview(symbol string) (*Overview, error) {
	body, err := c.request("OVERVIEW", map[string]string{"symbol": symbol}, symbol)
	if err != nil {
		// Stale identity beats none, but never stale price bounds
		if c.cacheRepo != nil {
			if stale, staleErr := c.cacheRepo.Get(providerName, symbol); staleErr == nil && stale != nil {
				c.log.Warn().Err(err).Str("symbol", symbol).Msg("Overview fetch failed, using stale cached metadata")
				return &Overview{Symbol: symbol, Name: stale.Name, Currency: stale.Currency, Exchange: stale.Exchange}, nil
			}
		}
		return nil, err
	}

	var payload struct {
		Symbol   string `json:"Symbol"`
		Name     string `json:"Name"`
		Currency string `json:"Currency"`
		Exchange string `json:"Exchange"`
		High     string `json:"52WeekHigh"`
		Low      string `json:"52WeekLow"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, c.malformed(symbol, err)
	}
	if payload.Symbol == "" && payload.Currency == "" {
		return nil, &domain.AdapterError{
			Kind:     domain.ErrorKindNotFound,
			Provider: providerName,
			Subject:  symbol,
			Err:      fmt.Errorf("empty overview"),
		}
	}

	overview := &Overview{
		Symbol:           payload.Symbol,
		Name:             payload.Name,
		Currency:         payload.Currency,
		Exchange:         payload.Exchange,
		FiftyTwoWeekHigh: parseFloat64Ptr(payload.High),
		FiftyTwoWeekLow:  parseFloat64Ptr(payload.Low),
	}

	if c.cacheRepo != nil && overview.Currency != "" {
		meta := clientdata.InstrumentMeta{
			Symbol:   symbol,
			Currency: overview.Currency,
			Name:     overview.Name,
			Exchange: overview.Exchange,
		}
		if err := c.cacheRepo.Store(providerName, symbol, meta, c.cacheRepo.MetaTTL()); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache overview metadata")
		}
	}
	return overview, nil
}

// FetchDailySeries fetches the compact daily close series (most recent ~100
// trading days), sorted ascending by date.
func (c *Client) FetchDailySeries(symbol string) ([]history.Bar, error) {
	body, err := c.request("TIME_SERIES_DAILY", map[string]string{
		"symbol":     symbol,
		"outputsize": "compact",
	}, symbol)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Series map[string]struct {
			Close string `json:"4. close"`
		} `json:"Time Series (Daily)"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, c.malformed(symbol, err)
	}
	if len(payload.Series) == 0 {
		return nil, &domain.AdapterError{
			Kind:     domain.ErrorKindMalformedResponse,
			Provider: providerName,
			Subject:  symbol,
			Err:      fmt.Errorf("time series missing from response"),
		}
	}

	bars := make([]history.Bar, 0, len(payload.Series))
	for date, entry := range payload.Series {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			continue
		}
		close := parseFloat64Ptr(entry.Close)
		if close == nil {
			continue
		}
		bars = append(bars, history.Bar{Date: day, Close: *close})
	}
	history.Sort(bars)
	return bars, nil
}

// FetchExchangeRate fetches the realtime conversion rate between two
// currencies.
func (c *Client) FetchExchangeRate(from, to string) (*ExchangeRateQuote, error) {
	pair := from + "/" + to
	body, err := c.request("CURRENCY_EXCHANGE_RATE", map[string]string{
		"from_currency": from,
		"to_currency":   to,
	}, pair)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Rate map[string]string `json:"Realtime Currency Exchange Rate"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, c.malformed(pair, err)
	}

	rate := parseFloat64Ptr(payload.Rate["5. Exchange Rate"])
	if rate == nil || *rate <= 0 {
		return nil, &domain.AdapterError{
			Kind:     domain.ErrorKindMalformedResponse,
			Provider: providerName,
			Subject:  pair,
			Err:      fmt.Errorf("exchange rate missing from response"),
		}
	}

	return &ExchangeRateQuote{
		FromCurrency: payload.Rate["1. From_Currency Code"],
		ToCurrency:   payload.Rate["3. To_Currency Code"],
		Rate:         *rate,
	}, nil
}

// request performs a GET for one API function and returns the raw body after
// status and soft-error classification.
func (c *Client) request(function string, params map[string]string, subject string) ([]byte, error) {
	values := url.Values{}
	values.Set("function", function)
	values.Set("apikey", c.apiKey)
	for k, v := range params {
		values.Set(k, v)
	}

	resp, err := c.client.Get(c.baseURL + "?" + values.Encode())
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

	if err := checkAPIError(body); err != nil {
		if adapterErr, ok := err.(*domain.AdapterError); ok {
			adapterErr.Subject = subject
		}
		return nil, err
	}
	return body, nil
}

// checkAPIError detects Alpha Vantage soft errors delivered with HTTP 200
func checkAPIError(body []byte) error {
	text := string(body)
	if strings.Contains(text, "Thank you for using Alpha Vantage") {
		return &domain.AdapterError{
			Kind:     domain.ErrorKindRateLimit,
			Provider: providerName,
			Err:      fmt.Errorf("API call frequency limit reached"),
		}
	}

	var soft struct {
		Note        string `json:"Note"`
		Information string `json:"Information"`
		ErrorMsg    string `json:"Error Message"`
	}
	if err := json.Unmarshal(body, &soft); err != nil {
		// Not an object; let the caller's parse step classify it
		return nil
	}

	switch {
	case soft.Note != "":
		return &domain.AdapterError{
			Kind:     domain.ErrorKindRateLimit,
			Provider: providerName,
			Err:      fmt.Errorf("API note: %s", soft.Note),
		}
	case soft.Information != "":
		return &domain.AdapterError{
			Kind:     domain.ErrorKindRateLimit,
			Provider: providerName,
			Err:      fmt.Errorf("API information: %s", soft.Information),
		}
	case soft.ErrorMsg != "":
		return &domain.AdapterError{
			Kind:     domain.ErrorKindNotFound,
			Provider: providerName,
			Err:      fmt.Errorf("API error: %s", soft.ErrorMsg),
		}
	}
	return nil
}

func (c *Client) malformed(subject string, err error) error {
	return &domain.AdapterError{
		Kind:     domain.ErrorKindMalformedResponse,
		Provider: providerName,
		Subject:  subject,
		Err:      fmt.Errorf("failed to parse response: %w", err),
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

// parseFloat64Ptr parses Alpha Vantage numeric strings, which use "None",
// "null", "-" and "" for missing values. Trailing percent signs are dropped.
func parseFloat64Ptr(s string) *float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	switch s {
	case "", "None", "null", "-", ".":
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
