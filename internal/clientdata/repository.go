// Package clientdata provides persistent caching for instrument identity
// metadata returned by provider APIs. Only identity fields (currency, name,
// exchange) are cached; quotes and FX rates are always fetched live so a
// report never carries prices from an earlier run.
package clientdata

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// TTLInstrumentMeta is the default lifetime of a cached metadata entry.
// Identity data changes rarely; a week keeps listings reasonably current.
const TTLInstrumentMeta = 7 * 24 * time.Hour

// InstrumentMeta holds the identity fields a provider reports for a symbol
type InstrumentMeta struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency,omitempty"`
	Name     string `json:"name,omitempty"`
	Exchange string `json:"exchange,omitempty"`
}

// Repository provides cache operations for instrument metadata.
// Entries are stored as JSON blobs keyed by provider and symbol, with an
// expiration timestamp for cache-first behavior.
type Repository struct {
	db  *sql.DB
	ttl time.Duration
}

// NewRepository creates a repository with the default metadata lifetime
func NewRepository(db *sql.DB) *Repository {
	return NewRepositoryWithTTL(db, TTLInstrumentMeta)
}

// NewRepositoryWithTTL creates a repository with a configured metadata
// lifetime. Non-positive values fall back to the default.
func NewRepositoryWithTTL(db *sql.DB, ttl time.Duration) *Repository {
	if ttl <= 0 {
		ttl = TTLInstrumentMeta
	}
	return &Repository{db: db, ttl: ttl}
}

// MetaTTL returns the configured metadata lifetime
func (r *Repository) MetaTTL() time.Duration {
	return r.ttl
}

func cacheKey(provider, symbol string) string {
	return provider + ":" + symbol
}

// Store saves metadata with expiration = now + ttl.
// Uses INSERT OR REPLACE to upsert data.
func (r *Repository) Store(provider, symbol string, meta InstrumentMeta, ttl time.Duration) error {
	jsonData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := time.Now()
	_, err = r.db.Exec(
		"INSERT OR REPLACE INTO instrument_meta (cache_key, data, expires_at, updated_at) VALUES (?, ?, ?, ?)",
		cacheKey(provider, symbol), string(jsonData), now.Add(ttl).Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store metadata for %s: %w", symbol, err)
	}
	return nil
}

// GetIfFresh returns metadata only if it has not expired.
// Returns nil, nil if the key doesn't exist or the entry is expired.
// Use Get() to retrieve stale data as a fallback when API calls fail.
func (r *Repository) GetIfFresh(provider, symbol string) (*InstrumentMeta, error) {
	return r.get(provider, symbol, true)
}

// Get returns metadata regardless of expiration status.
// Stale identity data is better than none when the upstream API is down.
// Returns nil, nil if the key doesn't exist.
func (r *Repository) Get(provider, symbol string) (*InstrumentMeta, error) {
	return r.get(provider, symbol, false)
}

func (r *Repository) get(provider, symbol string, freshOnly bool) (*InstrumentMeta, error) {
	query := "SELECT data FROM instrument_meta WHERE cache_key = ?"
	args := []interface{}{cacheKey(provider, symbol)}
	if freshOnly {
		query += " AND expires_at > ?"
		args = append(args, time.Now().Unix())
	}

	var data string
	err := r.db.QueryRow(query, args...).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata for %s: %w", symbol, err)
	}

	var meta InstrumentMeta
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", symbol, err)
	}
	return &meta, nil
}

// Delete removes a specific entry
func (r *Repository) Delete(provider, symbol string) error {
	if _, err := r.db.Exec("DELETE FROM instrument_meta WHERE cache_key = ?", cacheKey(provider, symbol)); err != nil {
		return fmt.Errorf("failed to delete metadata for %s: %w", symbol, err)
	}
	return nil
}

// DeleteExpired removes all rows where expires_at < now.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired() (int64, error) {
	result, err := r.db.Exec("DELETE FROM instrument_meta WHERE expires_at < ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired metadata: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}
