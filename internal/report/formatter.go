// Package report renders an evaluation into the plain-text message that gets
// delivered, and orchestrates a complete report run.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Rhymond/go-money"
	"github.com/aristath/marketbrief/internal/domain"
)

const unavailableMark = "—"

// Formatter renders evaluations as a fixed-width plain-text report
type Formatter struct {
	Header   string
	Footer   string
	MaxBytes int
}

// Format builds the complete report text. The result never exceeds MaxBytes;
// over-long reports are cut on a line boundary with a truncation marker.
func (f *Formatter) Format(eval *domain.Evaluation, now time.Time) string {
	var lines []string

	lines = append(lines, f.Header)
	lines = append(lines, fmt.Sprintf("Date: %s UTC", now.UTC().Format("2006-01-02 15:04")))
	lines = append(lines, fmt.Sprintf("Currency: %s", eval.BaseCurrency))
	lines = append(lines, strings.Repeat("=", 48))

	if len(eval.Positions) == 0 {
		lines = append(lines, "No position data available.")
	} else {
		lines = append(lines, fmt.Sprintf("%-8s %9s %7s %10s %7s %7s %7s %20s",
			"Sym", "Price", "Day%", "P/L", "P/L%", "WTD%", "MTD%", "52wk Range"))
		lines = append(lines, strings.Repeat("-", 80))

		for _, record := range eval.Positions {
			lines = append(lines, f.positionLine(record, eval.BaseCurrency))
		}
	}

	if len(eval.Indices) > 0 {
		lines = append(lines, "", "Indices:", strings.Repeat("-", 48))
		for _, record := range eval.Indices {
			lines = append(lines, f.indexLine(record))
		}
	}

	if eval.SymbolsFailed > 0 {
		lines = append(lines, "", fmt.Sprintf("No data for %d of %d symbols.", eval.SymbolsFailed, eval.SymbolsTotal))
	}

	lines = append(lines, "", f.Footer)

	return f.truncate(strings.Join(lines, "\n"))
}

func (f *Formatter) positionLine(record domain.MetricRecord, base domain.Currency) string {
	symbol := record.Symbol
	if len(symbol) > 7 {
		symbol = symbol[:7]
	}

	if !record.DataAvailable {
		return fmt.Sprintf("%-8s no data", symbol)
	}

	return fmt.Sprintf("%-8s %9s %7s %10s %7s %7s %7s %20s",
		symbol,
		formatMoney(record.LastPrice, base),
		formatSigned(record.DayChangePct),
		formatMoney(record.PnLAbs, base),
		formatSigned(record.PnLPct),
		formatSigned(record.WeekToDatePct),
		formatSigned(record.MonthToDatePct),
		formatRange(record.Week52Range, base),
	)
}

// indexLine renders an index in its native currency; index levels are never
// converted to the portfolio base.
func (f *Formatter) indexLine(record domain.MetricRecord) string {
	if !record.DataAvailable {
		return fmt.Sprintf("  %-10s no data", record.Symbol)
	}
	return fmt.Sprintf("  %-10s %12s  %7s",
		record.Symbol,
		formatMoney(record.LastPrice, record.Currency),
		formatSigned(record.DayChangePct),
	)
}

// truncate cuts the report to MaxBytes on a line boundary
func (f *Formatter) truncate(text string) string {
	if f.MaxBytes <= 0 || len(text) <= f.MaxBytes {
		return text
	}

	marker := "\n… (truncated)"
	limit := f.MaxBytes - len(marker)
	if limit < 0 {
		limit = 0
	}

	cut := strings.LastIndex(text[:limit], "\n")
	if cut <= 0 {
		// no newline in the window; back off to a rune boundary
		cut = limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
	}
	return text[:cut] + marker
}

// formatMoney renders an amount in the given currency, or the unavailable
// mark for a nil amount. The minor-unit scale comes from the currency
// itself, so zero-decimal currencies like JPY display correctly.
func formatMoney(amount *float64, code domain.Currency) string {
	if amount == nil {
		return unavailableMark
	}
	fraction := 2
	if cur := money.GetCurrency(string(code)); cur != nil {
		fraction = cur.Fraction
	}
	m := money.New(int64(math.Round(*amount*math.Pow10(fraction))), string(code))
	return m.Display()
}

// formatSigned renders a percentage with an explicit sign
func formatSigned(pct *float64) string {
	if pct == nil {
		return unavailableMark
	}
	if *pct >= 0 {
		return fmt.Sprintf("+%.2f%%", *pct)
	}
	return fmt.Sprintf("%.2f%%", *pct)
}

func formatRange(r *domain.Week52Range, base domain.Currency) string {
	if r == nil {
		return unavailableMark
	}
	return fmt.Sprintf("%s – %s", formatMoney(&r.Low, base), formatMoney(&r.High, base))
}
