package finnhub

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/marketbrief/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, handler http.Handler, now time.Time) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter := NewAdapter("test-key", nil, zerolog.Nop())
	adapter.client.baseURL = server.URL
	adapter.now = func() time.Time { return now }
	return adapter
}

func TestFetchQuote_AssemblesFullQuote(t *testing.T) {
	// Wed 2024-01-17; Mon 2024-01-15 starts the ISO week,
	// Tue 2024-01-02 starts the month
	now := time.Date(2024, time.January, 17, 12, 0, 0, 0, time.UTC)
	mondayTS := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC).Unix()
	monthTS := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC).Unix()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			fmt.Fprint(w, `{"c": 185.5, "pc": 183.2, "t": 1705492800}`)
		case "/stock/profile2":
			fmt.Fprint(w, `{"currency": "USD", "name": "Apple Inc", "exchange": "NASDAQ"}`)
		case "/stock/candle":
			fmt.Fprintf(w, `{"s": "ok", "t": [%d, %d], "c": [180.0, 184.0], "h": [195.0, 184.5], "l": [150.0, 179.5]}`,
				monthTS, mondayTS)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	quote, err := newTestAdapter(t, handler, now).FetchQuote("AAPL")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, "Apple Inc", quote.Name)
	assert.Equal(t, domain.CurrencyUSD, quote.Currency)
	assert.Equal(t, providerName, quote.Source)

	require.NotNil(t, quote.LastPrice)
	assert.InDelta(t, 185.5, *quote.LastPrice, 1e-9)
	require.NotNil(t, quote.PrevClose)
	assert.InDelta(t, 183.2, *quote.PrevClose, 1e-9)

	require.NotNil(t, quote.WeekStartClose)
	assert.InDelta(t, 184.0, *quote.WeekStartClose, 1e-9)
	require.NotNil(t, quote.MonthStartClose)
	assert.InDelta(t, 180.0, *quote.MonthStartClose, 1e-9)

	require.NotNil(t, quote.Week52Low)
	assert.InDelta(t, 150.0, *quote.Week52Low, 1e-9)
	require.NotNil(t, quote.Week52High)
	assert.InDelta(t, 195.0, *quote.Week52High, 1e-9)
}

func TestFetchQuote_HistoryFailureDegrades(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			fmt.Fprint(w, `{"c": 42.0, "pc": 41.0, "t": 0}`)
		case "/stock/profile2":
			fmt.Fprint(w, `{"currency": "EUR", "name": "Test NV"}`)
		case "/stock/candle":
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	quote, err := newTestAdapter(t, handler, time.Now().UTC()).FetchQuote("TST.AS")
	require.NoError(t, err)

	require.NotNil(t, quote.LastPrice)
	assert.Nil(t, quote.WeekStartClose)
	assert.Nil(t, quote.MonthStartClose)
	assert.Nil(t, quote.Week52High)
	assert.Nil(t, quote.Week52Low)
}

func TestFetchQuote_ProfileFailureDefaultsUSD(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			fmt.Fprint(w, `{"c": 42.0, "pc": 41.0, "t": 0}`)
		case "/stock/candle":
			fmt.Fprint(w, `{"s": "no_data"}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	quote, err := newTestAdapter(t, handler, time.Now().UTC()).FetchQuote("AAPL")
	require.NoError(t, err)
	assert.Equal(t, domain.CurrencyUSD, quote.Currency)
}

func TestFetchQuote_QuoteFailureIsFatal(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := newTestAdapter(t, handler, time.Now().UTC()).FetchQuote("AAPL")
	require.Error(t, err)
	assert.True(t, domain.IsErrorKind(err, domain.ErrorKindRateLimit))
}

func TestFetchRate(t *testing.T) {
	now := time.Date(2024, time.January, 17, 12, 0, 0, 0, time.UTC)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"base": "USD", "quote": {"EUR": 0.925}}`)
	})

	rate, err := newTestAdapter(t, handler, now).FetchRate(domain.CurrencyUSD, domain.CurrencyEUR)
	require.NoError(t, err)
	assert.Equal(t, domain.CurrencyUSD, rate.From)
	assert.Equal(t, domain.CurrencyEUR, rate.To)
	assert.InDelta(t, 0.925, rate.Rate, 1e-9)
	assert.Equal(t, now, rate.AsOf)
}

func TestAdapterImplementsQuoteProvider(t *testing.T) {
	var _ domain.QuoteProvider = (*Adapter)(nil)
}
