// Package journal records report runs in sqlite so operators can see
// when the bot last ran, how many symbols resolved, and whether the
// report was actually delivered anywhere.
package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// Run is one recorded report run
type Run struct {
	RunID         string
	StartedAt     time.Time
	FinishedAt    *time.Time
	SymbolsTotal  int
	SymbolsFailed int
	Delivered     bool
	Error         string
}

// Repository persists report runs
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new run journal repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Start records the beginning of a run
func (r *Repository) Start(runID string, startedAt time.Time) error {
	_, err := r.db.Exec(
		"INSERT INTO report_runs (run_id, started_at) VALUES (?, ?)",
		runID, startedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// Finish records the outcome of a run. runErr may be nil for a clean run;
// its message is stored either way so the journal stays queryable without
// the logs.
func (r *Repository) Finish(runID string, finishedAt time.Time, symbolsTotal, symbolsFailed int, delivered bool, runErr error) error {
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	_, err := r.db.Exec(
		`UPDATE report_runs
		 SET finished_at = ?, symbols_total = ?, symbols_failed = ?, delivered = ?, error = ?
		 WHERE run_id = ?`,
		finishedAt.Unix(), symbolsTotal, symbolsFailed, boolToInt(delivered), errText, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first
func (r *Repository) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(
		`SELECT run_id, started_at, finished_at, symbols_total, symbols_failed, delivered, COALESCE(error, '')
		 FROM report_runs ORDER BY started_at DESC, run_id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			started   int64
			finished  sql.NullInt64
			delivered int
		)
		if err := rows.Scan(&run.RunID, &started, &finished, &run.SymbolsTotal, &run.SymbolsFailed, &delivered, &run.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = time.Unix(started, 0).UTC()
		if finished.Valid {
			t := time.Unix(finished.Int64, 0).UTC()
			run.FinishedAt = &t
		}
		run.Delivered = delivered != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteOlderThan removes journal entries started before the cutoff.
// Returns the number of rows removed.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM report_runs WHERE started_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}
	return result.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
