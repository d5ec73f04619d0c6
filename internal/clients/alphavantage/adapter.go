package alphavantage

import (
	"fmt"
	"time"

	"github.com/aristath/marketbrief/internal/clientdata"
	"github.com/aristath/marketbrief/internal/domain"
	"github.com/aristath/marketbrief/internal/history"
	"github.com/rs/zerolog"
)

// Adapter adapts the Alpha Vantage client to domain.QuoteProvider.
// The adapter owns the client internally.
type Adapter struct {
	client *Client
	log    zerolog.Logger
	now    func() time.Time
}

// NewAdapter creates a new Alpha Vantage provider adapter
func NewAdapter(apiKey string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Adapter {
	return &Adapter{
		client: NewClient(apiKey, cacheRepo, log),
		log:    log.With().Str("provider", providerName).Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Name implements domain.QuoteProvider
func (a *Adapter) Name() string {
	return providerName
}

// FetchQuote implements domain.QuoteProvider. GLOBAL_QUOTE is required;
// overview and daily-series failures degrade to missing fields.
func (a *Adapter) FetchQuote(symbol string) (*domain.Quote, error) {
	snap, err := a.client.FetchGlobalQuote(symbol)
	if err != nil {
		return nil, err
	}

	// A quote without a last price is useless; fail so the cascade can
	// move on instead of short-circuiting on an empty row.
	if snap.Price == nil {
		return nil, &domain.AdapterError{
			Kind:     domain.ErrorKindNotFound,
			Provider: providerName,
			Subject:  symbol,
			Err:      fmt.Errorf("no last price in quote response"),
		}
	}

	quote := &domain.Quote{
		AsOf:      a.now(),
		Symbol:    symbol,
		Currency:  domain.CurrencyUSD,
		Source:    providerName,
		LastPrice: snap.Price,
		PrevClose: snap.PrevClose,
	}

	if overview, err := a.client.FetchOverview(symbol); err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Overview unavailable, assuming USD")
	} else {
		if overview.Currency != "" {
			quote.Currency = domain.Currency(overview.Currency)
		}
		quote.Name = overview.Name
		quote.Week52High = overview.FiftyTwoWeekHigh
		quote.Week52Low = overview.FiftyTwoWeekLow
	}

	if bars, err := a.client.FetchDailySeries(symbol); err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Daily series unavailable, anchors missing")
	} else {
		now := a.now()
		quote.WeekStartClose = history.WeekStartClose(bars, now)
		quote.MonthStartClose = history.MonthStartClose(bars, now)
	}

	return quote, nil
}

// FetchRate implements domain.QuoteProvider
func (a *Adapter) FetchRate(from, to domain.Currency) (*domain.FxRate, error) {
	rate, err := a.client.FetchExchangeRate(string(from), string(to))
	if err != nil {
		return nil, err
	}
	return &domain.FxRate{
		AsOf:   a.now(),
		From:   from,
		To:     to,
		Rate:   rate.Rate,
		Source: providerName,
	}, nil
}
