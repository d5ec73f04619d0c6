package yahoo

import (
	"fmt"
	"time"

	"github.com/aristath/marketbrief/internal/domain"
	"github.com/aristath/marketbrief/internal/history"
	"github.com/rs/zerolog"
)

// Adapter adapts the Yahoo Finance client to domain.QuoteProvider.
// The adapter owns the client internally.
type Adapter struct {
	client *Client
	log    zerolog.Logger
	now    func() time.Time
}

// NewAdapter creates a new Yahoo Finance provider adapter
func NewAdapter(log zerolog.Logger) *Adapter {
	return &Adapter{
		client: NewClient(log),
		log:    log.With().Str("provider", providerName).Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Name implements domain.QuoteProvider
func (a *Adapter) Name() string {
	return providerName
}

// FetchQuote implements domain.QuoteProvider. The v7 quote is required;
// chart failures only cost the week and month anchors.
func (a *Adapter) FetchQuote(symbol string) (*domain.Quote, error) {
	info, err := a.client.QuoteInfo(symbol)
	if err != nil {
		return nil, err
	}

	// A quote without a last price is useless; fail so the cascade can
	// move on instead of short-circuiting on an empty row.
	lastPrice := getFloat64(info, "regularMarketPrice")
	if lastPrice == nil {
		return nil, &domain.AdapterError{
			Kind:     domain.ErrorKindNotFound,
			Provider: providerName,
			Subject:  symbol,
			Err:      fmt.Errorf("no last price in quote response"),
		}
	}

	quote := &domain.Quote{
		AsOf:       a.now(),
		Symbol:     symbol,
		Currency:   domain.CurrencyUSD,
		Source:     providerName,
		LastPrice:  lastPrice,
		PrevClose:  getFloat64(info, "regularMarketPreviousClose"),
		Week52High: getFloat64(info, "fiftyTwoWeekHigh"),
		Week52Low:  getFloat64(info, "fiftyTwoWeekLow"),
	}
	if ccy := getString(info, "currency"); ccy != "" {
		quote.Currency = domain.Currency(ccy)
	}
	if name := getString(info, "shortName"); name != "" {
		quote.Name = name
	} else {
		quote.Name = getString(info, "longName")
	}
	if ts := getFloat64(info, "regularMarketTime"); ts != nil && *ts > 0 {
		quote.AsOf = time.Unix(int64(*ts), 0).UTC()
	}

	if bars, err := a.client.Chart(symbol); err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Chart fetch failed, anchors unavailable")
	} else if bars != nil {
		now := a.now()
		quote.WeekStartClose = history.WeekStartClose(bars, now)
		quote.MonthStartClose = history.MonthStartClose(bars, now)
	}

	return quote, nil
}

// FetchRate implements domain.QuoteProvider
func (a *Adapter) FetchRate(from, to domain.Currency) (*domain.FxRate, error) {
	rate, err := a.client.ExchangeRate(string(from), string(to))
	if err != nil {
		return nil, err
	}
	return &domain.FxRate{
		AsOf:   a.now(),
		From:   from,
		To:     to,
		Rate:   rate,
		Source: providerName,
	}, nil
}
