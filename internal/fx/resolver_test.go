package fx

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aristath/marketbrief/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource counts cascade invocations
type stubSource struct {
	calls int64
	rate  float64
	err   error
	delay chan struct{} // when set, Resolve blocks until closed
}

func (s *stubSource) ResolveRate(from, to domain.Currency) (*domain.FxRate, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.delay != nil {
		<-s.delay
	}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.FxRate{From: from, To: to, Rate: s.rate, Source: "stub"}, nil
}

func TestRate_IdentityNeverTouchesCascade(t *testing.T) {
	source := &stubSource{rate: 0.92}
	resolver := NewResolver(source, zerolog.Nop())

	for _, ccy := range []domain.Currency{"EUR", "USD", "GBP", "JPY"} {
		rate, err := resolver.Rate(ccy, ccy)
		require.NoError(t, err)
		assert.Equal(t, 1.0, rate)
	}
	assert.Equal(t, int64(0), atomic.LoadInt64(&source.calls))
}

func TestRate_CachesPerPair(t *testing.T) {
	source := &stubSource{rate: 0.92}
	resolver := NewResolver(source, zerolog.Nop())

	for i := 0; i < 5; i++ {
		rate, err := resolver.Rate("USD", "EUR")
		require.NoError(t, err)
		assert.InDelta(t, 0.92, rate, 1e-9)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&source.calls))

	// The reverse pair is a distinct cache entry
	_, err := resolver.Rate("EUR", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&source.calls))
}

func TestRate_FailureWrapsConversionUnavailable(t *testing.T) {
	source := &stubSource{err: &domain.CascadeFailure{Subject: "USD/EUR"}}
	resolver := NewResolver(source, zerolog.Nop())

	_, err := resolver.Rate("USD", "EUR")
	require.Error(t, err)

	var conv *domain.ConversionUnavailableError
	require.True(t, errors.As(err, &conv))
	assert.Equal(t, domain.Currency("USD"), conv.From)
	assert.Equal(t, domain.Currency("EUR"), conv.To)

	var failure *domain.CascadeFailure
	assert.True(t, errors.As(err, &failure))
}

func TestRate_ConcurrentRequestsDeduplicated(t *testing.T) {
	source := &stubSource{rate: 0.92, delay: make(chan struct{})}
	resolver := NewResolver(source, zerolog.Nop())

	const workers = 16
	var wg sync.WaitGroup
	results := make([]float64, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rate, err := resolver.Rate("USD", "EUR")
			assert.NoError(t, err)
			results[i] = rate
		}(i)
	}

	close(source.delay)
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&source.calls),
		"only one resolution per missing pair should reach the cascade")
	for _, rate := range results {
		assert.InDelta(t, 0.92, rate, 1e-9)
	}
}

func TestResolverImplementsRateResolver(t *testing.T) {
	var _ domain.RateResolver = (*Resolver)(nil)
}
