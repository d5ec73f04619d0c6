// Package domain provides core domain models and types.
package domain

import "time"

// Currency represents an ISO 4217 currency code
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyCHF Currency = "CHF"
)

// Position represents a configured portfolio holding.
// CostBasis is the average acquisition price per unit, already denominated
// in the portfolio base currency. A nil CostBasis means the acquisition
// price is unknown; profit and loss cannot be computed for the position
// but market metrics still can.
type Position struct {
	Symbol    string   `json:"symbol" yaml:"symbol"`
	Units     float64  `json:"units" yaml:"units"`
	CostBasis *float64 `json:"cost_basis,omitempty" yaml:"cost_basis,omitempty"`
}

// Quote is a point-in-time market snapshot for one symbol as assembled by a
// single provider. Price fields are in the instrument's native trading
// currency. A nil field means the provider could not supply it; zero is
// never used as a missing-value marker.
type Quote struct {
	AsOf     time.Time `json:"as_of"`
	Symbol   string    `json:"symbol"`
	Name     string    `json:"name,omitempty"`
	Currency Currency  `json:"currency"`
	Source   string    `json:"source"`

	LastPrice *float64 `json:"last_price,omitempty"`
	PrevClose *float64 `json:"prev_close,omitempty"`

	// WeekStartClose is the close of the first trading day of the current
	// ISO week, MonthStartClose the close of the first trading day of the
	// current calendar month. Trading days follow the instrument's own
	// calendar as reported by the provider.
	WeekStartClose  *float64 `json:"week_start_close,omitempty"`
	MonthStartClose *float64 `json:"month_start_close,omitempty"`

	Week52High *float64 `json:"week_52_high,omitempty"`
	Week52Low  *float64 `json:"week_52_low,omitempty"`
}

// FxRate is a spot conversion rate between two currencies
type FxRate struct {
	AsOf   time.Time `json:"as_of"`
	From   Currency  `json:"from"`
	To     Currency  `json:"to"`
	Rate   float64   `json:"rate"`
	Source string    `json:"source"`
}

// Week52Range holds the trailing 52-week price bounds in base currency
type Week52Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// MetricRecord is one evaluated row of a report. Monetary fields are in the
// portfolio base currency; percent fields are currency-invariant. A nil
// field could not be computed from the available inputs, which is distinct
// from a computed value of zero.
type MetricRecord struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name,omitempty"`
	Currency      Currency `json:"currency,omitempty"`
	Source        string   `json:"source,omitempty"`
	Units         float64  `json:"units"`
	IsIndex       bool     `json:"is_index"`
	DataAvailable bool     `json:"data_available"`

	LastPrice      *float64     `json:"last_price,omitempty"`
	DayChangePct   *float64     `json:"day_change_pct,omitempty"`
	WeekToDatePct  *float64     `json:"week_to_date_pct,omitempty"`
	MonthToDatePct *float64     `json:"month_to_date_pct,omitempty"`
	PnLAbs         *float64     `json:"pnl_abs,omitempty"`
	PnLPct         *float64     `json:"pnl_pct,omitempty"`
	Week52Range    *Week52Range `json:"week_52_range,omitempty"`
}

// Evaluation is the fully computed result of one report run
type Evaluation struct {
	GeneratedAt  time.Time `json:"generated_at"`
	BaseCurrency Currency  `json:"base_currency"`

	// Positions are sorted by the configured field and truncated to the
	// configured top N. Indices keep their configured order and are never
	// truncated.
	Positions []MetricRecord `json:"positions"`
	Indices   []MetricRecord `json:"indices,omitempty"`

	SymbolsTotal  int `json:"symbols_total"`
	SymbolsFailed int `json:"symbols_failed"`
}

// Float64 returns a pointer to v. Convenience for optional price fields.
func Float64(v float64) *float64 {
	return &v
}
