package finnhub

import (
	"time"

	"github.com/aristath/marketbrief/internal/clientdata"
	"github.com/aristath/marketbrief/internal/domain"
	"github.com/aristath/marketbrief/internal/history"
	"github.com/rs/zerolog"
)

// candleWindow covers a full trading year plus slack for holidays, so the
// 52-week bounds derived from it are complete.
const candleWindow = 370 * 24 * time.Hour

// Adapter adapts the Finnhub client to domain.QuoteProvider.
// The adapter owns the client internally.
type Adapter struct {
	client *Client
	log    zerolog.Logger
	now    func() time.Time
}

// NewAdapter creates a new Finnhub provider adapter
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

// FetchQuote implements domain.QuoteProvider. The snapshot quote is required;
// profile and history failures degrade to missing fields instead of failing
// the whole fetch.
func (a *Adapter) FetchQuote(symbol string) (*domain.Quote, error) {
	snap, err := a.client.Quote(symbol)
	if err != nil {
		return nil, err
	}

	quote := &domain.Quote{
		AsOf:      a.now(),
		Symbol:    symbol,
		Currency:  domain.CurrencyUSD,
		Source:    providerName,
		LastPrice: positive(snap.Current),
		PrevClose: positive(snap.PrevClose),
	}
	if snap.Timestamp > 0 {
		quote.AsOf = time.Unix(snap.Timestamp, 0).UTC()
	}

	if meta, err := a.client.Profile(symbol); err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Profile unavailable, assuming USD")
	} else {
		if meta.Currency != "" {
			quote.Currency = domain.Currency(meta.Currency)
		}
		quote.Name = meta.Name
	}

	a.attachHistory(quote, symbol)
	return quote, nil
}

// attachHistory fills anchors and 52-week bounds from daily candles.
// Any failure here leaves those fields nil.
func (a *Adapter) attachHistory(quote *domain.Quote, symbol string) {
	now := a.now()
	candles, err := a.client.Candles(symbol, now.Add(-candleWindow).Unix(), now.Unix())
	if err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Candle fetch failed, anchors unavailable")
		return
	}
	if candles == nil {
		return
	}

	bars := make([]history.Bar, 0, len(candles.Timestamps))
	for i, ts := range candles.Timestamps {
		if i >= len(candles.Closes) {
			break
		}
		bar := history.Bar{
			Date:  time.Unix(ts, 0).UTC(),
			Close: candles.Closes[i],
		}
		if i < len(candles.Highs) {
			bar.High = candles.Highs[i]
		}
		if i < len(candles.Lows) {
			bar.Low = candles.Lows[i]
		}
		bars = append(bars, bar)
	}
	history.Sort(bars)

	quote.WeekStartClose = history.WeekStartClose(bars, now)
	quote.MonthStartClose = history.MonthStartClose(bars, now)
	quote.Week52Low, quote.Week52High = history.Range52Week(bars)
}

// FetchRate implements domain.QuoteProvider
func (a *Adapter) FetchRate(from, to domain.Currency) (*domain.FxRate, error) {
	rate, err := a.client.Rate(string(from), string(to))
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

func positive(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}
