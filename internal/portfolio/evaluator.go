// Package portfolio evaluates the configured positions and index symbols
// into a sorted set of metric records. Each symbol gets exactly one cascade
// attempt per run; a symbol whose resolution fails entirely still produces a
// record, flagged unavailable, so the report can name it instead of silently
// dropping the row.
package portfolio

import (
	"sort"
	"sync"
	"time"

	"github.com/aristath/marketbrief/internal/domain"
	"github.com/aristath/marketbrief/internal/metrics"
	"github.com/rs/zerolog"
)

const defaultWorkers = 4

// Config controls fetch concurrency and result ordering
type Config struct {
	Workers    int
	SortBy     string
	Descending bool
	TopN       int
}

// Evaluator runs one evaluation over positions and indices
type Evaluator struct {
	quotes domain.QuoteResolver
	cfg    Config
	log    zerolog.Logger
}

// NewEvaluator creates a new portfolio evaluator
func NewEvaluator(quotes domain.QuoteResolver, cfg Config, log zerolog.Logger) *Evaluator {
	if cfg.Workers < 1 {
		cfg.Workers = defaultWorkers
	}
	return &Evaluator{
		quotes: quotes,
		cfg:    cfg,
		log:    log.With().Str("component", "evaluator").Logger(),
	}
}

// job is one symbol to resolve; position jobs carry the position, index jobs
// only the symbol
type job struct {
	index    int
	symbol   string
	position domain.Position
	isIndex  bool
}

// Evaluate resolves every position and index symbol, computes metrics and
// returns the sorted result. Fetches run on a bounded worker pool; the output
// order is fixed by the sort, never by completion order.
func (e *Evaluator) Evaluate(positions []domain.Position, indices []string, base domain.Currency, rates domain.RateResolver) *domain.Evaluation {
	jobs := make([]job, 0, len(positions)+len(indices))
	for _, pos := range positions {
		jobs = append(jobs, job{index: len(jobs), symbol: pos.Symbol, position: pos})
	}
	for _, symbol := range indices {
		jobs = append(jobs, job{index: len(jobs), symbol: symbol, isIndex: true})
	}

	// Results land in their input slot so concurrency cannot reorder them
	records := make([]domain.MetricRecord, len(jobs))

	queue := make(chan job)
	var wg sync.WaitGroup
	workers := e.cfg.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				records[j.index] = e.evaluateOne(j, base, rates)
			}
		}()
	}
	for _, j := range jobs {
		queue <- j
	}
	close(queue)
	wg.Wait()

	eval := &domain.Evaluation{
		GeneratedAt:  time.Now().UTC(),
		BaseCurrency: base,
		SymbolsTotal: len(jobs),
	}
	for i, record := range records {
		if !record.DataAvailable {
			eval.SymbolsFailed++
		}
		if jobs[i].isIndex {
			eval.Indices = append(eval.Indices, record)
		} else {
			eval.Positions = append(eval.Positions, record)
		}
	}

	sortRecords(eval.Positions, e.cfg.SortBy, e.cfg.Descending)
	if e.cfg.TopN > 0 && len(eval.Positions) > e.cfg.TopN {
		eval.Positions = eval.Positions[:e.cfg.TopN]
	}

	e.log.Info().
		Int("symbols", eval.SymbolsTotal).
		Int("failed", eval.SymbolsFailed).
		Msg("Evaluation complete")
	return eval
}

// evaluateOne resolves and scores a single symbol. Failures stay inside the
// returned record; they never affect other symbols.
func (e *Evaluator) evaluateOne(j job, base domain.Currency, rates domain.RateResolver) domain.MetricRecord {
	quote, err := e.quotes.ResolveQuote(j.symbol)
	if err != nil {
		e.log.Error().Err(err).Str("symbol", j.symbol).Msg("No data for symbol")
		return metrics.Unavailable(j.symbol, j.position.Units, j.isIndex)
	}

	if j.isIndex {
		return metrics.ComputeIndex(quote, j.symbol)
	}
	return metrics.Compute(quote, j.position, base, rates)
}

// sortKey returns the value a record sorts by, or nil when it is unavailable
func sortKey(record domain.MetricRecord, field string) *float64 {
	switch field {
	case "week_to_date_pct":
		return record.WeekToDatePct
	case "month_to_date_pct":
		return record.MonthToDatePct
	case "pnl_abs":
		return record.PnLAbs
	case "pnl_pct":
		return record.PnLPct
	case "last_price":
		return record.LastPrice
	default:
		return record.DayChangePct
	}
}

// sortRecords orders records by the configured field. Records without a sort
// value go last regardless of direction; ties keep their input order.
func sortRecords(records []domain.MetricRecord, field string, descending bool) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := sortKey(records[i], field), sortKey(records[j], field)
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		case descending:
			return *a > *b
		default:
			return *a < *b
		}
	})
}
