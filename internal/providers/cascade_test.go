package providers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aristath/marketbrief/internal/config"
	"github.com/aristath/marketbrief/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider counts calls and returns canned results
type stubProvider struct {
	name       string
	quote      *domain.Quote
	rate       *domain.FxRate
	err        error
	quoteCalls int
	rateCalls  int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) FetchQuote(symbol string) (*domain.Quote, error) {
	s.quoteCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.quote, nil
}

func (s *stubProvider) FetchRate(from, to domain.Currency) (*domain.FxRate, error) {
	s.rateCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.rate, nil
}

func adapterErr(provider string, kind domain.ErrorKind) *domain.AdapterError {
	return &domain.AdapterError{
		Kind:     kind,
		Provider: provider,
		Err:      fmt.Errorf("stub failure"),
	}
}

func TestResolveQuote_FirstSuccessShortCircuits(t *testing.T) {
	first := &stubProvider{name: "first", quote: &domain.Quote{Symbol: "AAPL", Source: "first"}}
	second := &stubProvider{name: "second", quote: &domain.Quote{Symbol: "AAPL", Source: "second"}}

	cascade := NewCascade([]domain.QuoteProvider{first, second}, zerolog.Nop())

	quote, err := cascade.ResolveQuote("AAPL")
	require.NoError(t, err)
	assert.Equal(t, "first", quote.Source)

	assert.Equal(t, 1, first.quoteCalls)
	assert.Equal(t, 0, second.quoteCalls, "providers after a success must not be invoked")
}

func TestResolveQuote_FallsThroughOnFailure(t *testing.T) {
	first := &stubProvider{name: "first", err: adapterErr("first", domain.ErrorKindRateLimit)}
	second := &stubProvider{name: "second", quote: &domain.Quote{Symbol: "AAPL", Source: "second"}}

	cascade := NewCascade([]domain.QuoteProvider{first, second}, zerolog.Nop())

	quote, err := cascade.ResolveQuote("AAPL")
	require.NoError(t, err)
	assert.Equal(t, "second", quote.Source)
	assert.Equal(t, 1, first.quoteCalls)
	assert.Equal(t, 1, second.quoteCalls)
}

func TestResolveQuote_AllFailAggregatesInOrder(t *testing.T) {
	first := &stubProvider{name: "first", err: adapterErr("first", domain.ErrorKindAuth)}
	second := &stubProvider{name: "second", err: adapterErr("second", domain.ErrorKindNotFound)}
	third := &stubProvider{name: "third", err: adapterErr("third", domain.ErrorKindTransientNetwork)}

	cascade := NewCascade([]domain.QuoteProvider{first, second, third}, zerolog.Nop())

	_, err := cascade.ResolveQuote("AAPL")
	require.Error(t, err)

	var failure *domain.CascadeFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "AAPL", failure.Subject)
	require.Len(t, failure.Attempts, 3)
	assert.Equal(t, "first", failure.Attempts[0].Provider)
	assert.Equal(t, "second", failure.Attempts[1].Provider)
	assert.Equal(t, "third", failure.Attempts[2].Provider)
	assert.True(t, domain.IsErrorKind(failure.Attempts[0].Err, domain.ErrorKindAuth))

	// Every provider was attempted exactly once
	assert.Equal(t, 1, first.quoteCalls)
	assert.Equal(t, 1, second.quoteCalls)
	assert.Equal(t, 1, third.quoteCalls)
}

func TestResolveRate_ShortCircuits(t *testing.T) {
	first := &stubProvider{name: "first", rate: &domain.FxRate{From: "USD", To: "EUR", Rate: 0.92, Source: "first"}}
	second := &stubProvider{name: "second", rate: &domain.FxRate{From: "USD", To: "EUR", Rate: 0.93, Source: "second"}}

	cascade := NewCascade([]domain.QuoteProvider{first, second}, zerolog.Nop())

	rate, err := cascade.ResolveRate("USD", "EUR")
	require.NoError(t, err)
	assert.InDelta(t, 0.92, rate.Rate, 1e-9)
	assert.Equal(t, 0, second.rateCalls)
}

func TestResolveRate_RejectsNonPositiveRate(t *testing.T) {
	bad := &stubProvider{name: "bad", rate: &domain.FxRate{From: "USD", To: "EUR", Rate: 0}}
	good := &stubProvider{name: "good", rate: &domain.FxRate{From: "USD", To: "EUR", Rate: 0.92}}

	cascade := NewCascade([]domain.QuoteProvider{bad, good}, zerolog.Nop())

	rate, err := cascade.ResolveRate("USD", "EUR")
	require.NoError(t, err)
	assert.InDelta(t, 0.92, rate.Rate, 1e-9)
}

func TestBuildChain_Eligibility(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.ProvidersConfig
		providers []string
	}{
		{
			name:      "all keys configured",
			cfg:       config.ProvidersConfig{FinnhubAPIKey: "fk", AlphaVantageAPIKey: "ak"},
			providers: []string{"finnhub", "alphavantage", "yahoo"},
		},
		{
			name:      "finnhub key only",
			cfg:       config.ProvidersConfig{FinnhubAPIKey: "fk"},
			providers: []string{"finnhub", "yahoo"},
		},
		{
			name:      "no keys leaves the keyless fallback",
			cfg:       config.ProvidersConfig{},
			providers: []string{"yahoo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := BuildChain(tt.cfg, nil, zerolog.Nop())
			names := make([]string, len(chain))
			for i, p := range chain {
				names[i] = p.Name()
			}
			assert.Equal(t, tt.providers, names)
		})
	}
}
