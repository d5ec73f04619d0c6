// Package fx resolves currency conversion rates for one evaluation run.
// A Resolver caches every resolved pair for its own lifetime and nothing
// longer; the next scheduled run builds a fresh Resolver so it can never
// convert with yesterday's rates.
package fx

import (
	"sync"

	"github.com/aristath/marketbrief/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// RateSource is the slice of the provider cascade the resolver needs
type RateSource interface {
	ResolveRate(from, to domain.Currency) (*domain.FxRate, error)
}

// Resolver resolves conversion rates through the provider cascade with a
// per-run cache. Safe for concurrent use; concurrent first requests for the
// same pair are deduplicated so only one reaches the network.
type Resolver struct {
	source RateSource
	log    zerolog.Logger

	mu    sync.RWMutex
	cache map[string]float64
	group singleflight.Group
}

// NewResolver creates a resolver for a single evaluation run
func NewResolver(source RateSource, log zerolog.Logger) *Resolver {
	return &Resolver{
		source: source,
		log:    log.With().Str("component", "fx").Logger(),
		cache:  make(map[string]float64),
	}
}

// Rate implements domain.RateResolver. Identical currencies resolve to 1
// without touching the cascade. On cascade failure the error is a
// *domain.ConversionUnavailableError; callers degrade the affected money
// fields instead of aborting.
func (r *Resolver) Rate(from, to domain.Currency) (float64, error) {
	if from == to {
		return 1.0, nil
	}

	key := string(from) + ":" + string(to)

	r.mu.RLock()
	rate, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return rate, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		// Recheck under the write path; a concurrent caller may have
		// stored the rate between the RUnlock and Do.
		r.mu.RLock()
		cached, ok := r.cache[key]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		resolved, err := r.source.ResolveRate(from, to)
		if err != nil {
			return 0.0, err
		}

		r.mu.Lock()
		r.cache[key] = resolved.Rate
		r.mu.Unlock()

		r.log.Info().
			Str("from", string(from)).
			Str("to", string(to)).
			Float64("rate", resolved.Rate).
			Str("source", resolved.Source).
			Msg("Resolved conversion rate")
		return resolved.Rate, nil
	})
	if err != nil {
		return 0, &domain.ConversionUnavailableError{From: from, To: to, Err: err}
	}
	return v.(float64), nil
}
