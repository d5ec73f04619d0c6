package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/marketbrief/internal/domain"
	"github.com/aristath/marketbrief/internal/fx"
)

// Deliverer fans the rendered report out to the configured channels
type Deliverer interface {
	Send(message string) bool
	Channels() int
}

// Journal records run outcomes
type Journal interface {
	Start(runID string, startedAt time.Time) error
	Finish(runID string, finishedAt time.Time, symbolsTotal, symbolsFailed int, delivered bool, runErr error) error
}

// Evaluator produces one evaluation over the portfolio
type Evaluator interface {
	Evaluate(positions []domain.Position, indices []string, base domain.Currency, rates domain.RateResolver) *domain.Evaluation
}

// Service runs one complete report cycle: evaluate, render, deliver, journal
type Service struct {
	positions []domain.Position
	indices   []string
	base      domain.Currency

	evaluator  Evaluator
	rateSource fx.RateSource
	formatter  *Formatter
	deliverer  Deliverer
	journal    Journal
	log        zerolog.Logger

	now      func() time.Time
	newRunID func() string
}

// NewService creates a report service over the given collaborators
func NewService(
	positions []domain.Position,
	indices []string,
	base domain.Currency,
	evaluator Evaluator,
	rateSource fx.RateSource,
	formatter *Formatter,
	deliverer Deliverer,
	journal Journal,
	log zerolog.Logger,
) *Service {
	return &Service{
		positions:  positions,
		indices:    indices,
		base:       base,
		evaluator:  evaluator,
		rateSource: rateSource,
		formatter:  formatter,
		deliverer:  deliverer,
		journal:    journal,
		log:        log.With().Str("service", "report").Logger(),
		now:        time.Now,
		newRunID:   uuid.NewString,
	}
}

// Name implements the scheduler job interface
func (s *Service) Name() string {
	return "report"
}

// Run executes one report cycle. The FX resolver is created fresh per run so
// every report uses rates fetched during that run. A report is delivered even
// when symbols failed to resolve; the run only errors when nothing resolved
// or when every configured channel rejected the message.
func (s *Service) Run() error {
	runID := s.newRunID()
	started := s.now()
	log := s.log.With().Str("run_id", runID).Logger()

	log.Info().
		Int("positions", len(s.positions)).
		Int("indices", len(s.indices)).
		Str("base_currency", string(s.base)).
		Msg("Starting report run")

	if err := s.journal.Start(runID, started); err != nil {
		log.Error().Err(err).Msg("Failed to journal run start")
	}

	rates := fx.NewResolver(s.rateSource, log)
	eval := s.evaluator.Evaluate(s.positions, s.indices, s.base, rates)

	var runErr error
	if eval.SymbolsTotal > 0 && eval.SymbolsFailed == eval.SymbolsTotal {
		runErr = fmt.Errorf("no data for any of %d symbols", eval.SymbolsTotal)
	}

	text := s.formatter.Format(eval, started)
	delivered := s.deliverer.Send(text)
	if runErr == nil && !delivered && s.deliverer.Channels() > 0 {
		runErr = fmt.Errorf("all %d delivery channels failed", s.deliverer.Channels())
	}

	finished := s.now()
	if err := s.journal.Finish(runID, finished, eval.SymbolsTotal, eval.SymbolsFailed, delivered, runErr); err != nil {
		log.Error().Err(err).Msg("Failed to journal run finish")
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("Report run failed")
		return runErr
	}

	log.Info().
		Dur("duration", finished.Sub(started)).
		Int("symbols_failed", eval.SymbolsFailed).
		Bool("delivered", delivered).
		Msg("Report run complete")
	return nil
}
