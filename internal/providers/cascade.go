// Package providers builds and runs the market data provider cascade.
// Providers are ordered by priority at construction time; a request walks the
// chain until one provider succeeds. Providers missing their credentials are
// excluded when the chain is built and never show up as runtime failures.
package providers

import (
	"fmt"

	"github.com/aristath/marketbrief/internal/clientdata"
	"github.com/aristath/marketbrief/internal/clients/alphavantage"
	"github.com/aristath/marketbrief/internal/clients/finnhub"
	"github.com/aristath/marketbrief/internal/clients/yahoo"
	"github.com/aristath/marketbrief/internal/config"
	"github.com/aristath/marketbrief/internal/domain"
	"github.com/rs/zerolog"
)

// BuildChain assembles the eligible providers in priority order:
// Finnhub, Alpha Vantage (each only with an API key), then Yahoo Finance as
// the always-available fallback.
func BuildChain(cfg config.ProvidersConfig, cacheRepo *clientdata.Repository, log zerolog.Logger) []domain.QuoteProvider {
	var chain []domain.QuoteProvider

	if cfg.FinnhubAPIKey != "" {
		chain = append(chain, finnhub.NewAdapter(cfg.FinnhubAPIKey, cacheRepo, log))
	} else {
		log.Info().Str("provider", "finnhub").Msg("Provider skipped, no API key configured")
	}

	if cfg.AlphaVantageAPIKey != "" {
		chain = append(chain, alphavantage.NewAdapter(cfg.AlphaVantageAPIKey, cacheRepo, log))
	} else {
		log.Info().Str("provider", "alphavantage").Msg("Provider skipped, no API key configured")
	}

	chain = append(chain, yahoo.NewAdapter(log))

	names := make([]string, len(chain))
	for i, p := range chain {
		names[i] = p.Name()
	}
	log.Info().Strs("providers", names).Msg("Provider chain built")
	return chain
}

// Cascade tries each provider in turn; first success wins
type Cascade struct {
	providers []domain.QuoteProvider
	log       zerolog.Logger
}

// NewCascade creates a cascade over providers, in the given priority order
func NewCascade(providers []domain.QuoteProvider, log zerolog.Logger) *Cascade {
	return &Cascade{
		providers: providers,
		log:       log.With().Str("component", "cascade").Logger(),
	}
}

// ResolveQuote asks each provider for a quote until one succeeds. When every
// provider fails the returned error is a *domain.CascadeFailure carrying all
// attempts in order.
func (c *Cascade) ResolveQuote(symbol string) (*domain.Quote, error) {
	var attempts []domain.CascadeAttempt

	for _, provider := range c.providers {
		quote, err := provider.FetchQuote(symbol)
		if err == nil {
			c.log.Debug().
				Str("symbol", symbol).
				Str("provider", provider.Name()).
				Msg("Quote resolved")
			return quote, nil
		}

		c.log.Warn().
			Err(err).
			Str("symbol", symbol).
			Str("provider", provider.Name()).
			Msg("Provider failed, trying next")
		attempts = append(attempts, domain.CascadeAttempt{Provider: provider.Name(), Err: err})
	}

	c.log.Error().Str("symbol", symbol).Msg("All providers failed for quote")
	return nil, &domain.CascadeFailure{Subject: symbol, Attempts: attempts}
}

// ResolveRate asks each provider for a conversion rate until one succeeds,
// with the same ordering and aggregation rules as ResolveQuote.
func (c *Cascade) ResolveRate(from, to domain.Currency) (*domain.FxRate, error) {
	pair := string(from) + "/" + string(to)
	var attempts []domain.CascadeAttempt

	for _, provider := range c.providers {
		rate, err := provider.FetchRate(from, to)
		if err == nil && rate.Rate > 0 {
			c.log.Debug().
				Str("pair", pair).
				Str("provider", provider.Name()).
				Float64("rate", rate.Rate).
				Msg("Rate resolved")
			return rate, nil
		}
		if err == nil {
			err = &domain.AdapterError{
				Kind:     domain.ErrorKindMalformedResponse,
				Provider: provider.Name(),
				Subject:  pair,
				Err:      fmt.Errorf("non-positive rate"),
			}
		}

		c.log.Warn().
			Err(err).
			Str("pair", pair).
			Str("provider", provider.Name()).
			Msg("Provider failed, trying next")
		attempts = append(attempts, domain.CascadeAttempt{Provider: provider.Name(), Err: err})
	}

	c.log.Error().Str("pair", pair).Msg("All providers failed for rate")
	return nil, &domain.CascadeFailure{Subject: pair, Attempts: attempts}
}
