// Package metrics computes per-position performance metrics from a provider
// quote. Computation is pure: the only external call is the conversion rate
// lookup, and a failed conversion degrades the monetary fields instead of
// failing the record. A nil field always means "could not be computed",
// never zero.
package metrics

import (
	"github.com/aristath/marketbrief/internal/domain"
)

// Compute builds the metric record for one position from its quote.
// Percent changes are ratios of native-currency prices and survive a failed
// conversion; monetary fields are converted into base and become nil when no
// rate is available. CostBasis is taken as already denominated in the base
// currency.
func Compute(quote *domain.Quote, pos domain.Position, base domain.Currency, rates domain.RateResolver) domain.MetricRecord {
	record := domain.MetricRecord{
		Symbol:        pos.Symbol,
		Name:          quote.Name,
		Currency:      quote.Currency,
		Source:        quote.Source,
		Units:         pos.Units,
		DataAvailable: true,
	}

	// Currency-invariant ratios, computed from native prices
	record.DayChangePct = changePct(quote.LastPrice, quote.PrevClose)
	record.WeekToDatePct = changePct(quote.LastPrice, quote.WeekStartClose)
	record.MonthToDatePct = changePct(quote.LastPrice, quote.MonthStartClose)

	rate, err := rates.Rate(quote.Currency, base)
	if err != nil {
		// Conversion unavailable: monetary fields stay nil, ratios stand
		return record
	}

	if quote.LastPrice != nil {
		record.LastPrice = domain.Float64(*quote.LastPrice * rate)
	}
	if quote.Week52Low != nil && quote.Week52High != nil {
		record.Week52Range = &domain.Week52Range{
			Low:  *quote.Week52Low * rate,
			High: *quote.Week52High * rate,
		}
	}

	if pos.CostBasis != nil && *pos.CostBasis != 0 && record.LastPrice != nil {
		diff := *record.LastPrice - *pos.CostBasis
		record.PnLAbs = domain.Float64(diff * pos.Units)
		record.PnLPct = domain.Float64(diff / *pos.CostBasis * 100.0)
	}

	return record
}

// ComputeIndex builds the record for an index symbol. Index levels stay in
// their native currency and carry no units, cost basis or PnL, so no
// conversion rate is ever fetched for them.
func ComputeIndex(quote *domain.Quote, symbol string) domain.MetricRecord {
	record := domain.MetricRecord{
		Symbol:        symbol,
		Name:          quote.Name,
		Currency:      quote.Currency,
		Source:        quote.Source,
		IsIndex:       true,
		DataAvailable: true,
	}

	if quote.LastPrice != nil {
		record.LastPrice = domain.Float64(*quote.LastPrice)
	}
	record.DayChangePct = changePct(quote.LastPrice, quote.PrevClose)
	record.WeekToDatePct = changePct(quote.LastPrice, quote.WeekStartClose)
	record.MonthToDatePct = changePct(quote.LastPrice, quote.MonthStartClose)

	return record
}

// Unavailable builds the record emitted when every provider failed for a
// symbol: fully flagged, never a dropped row.
func Unavailable(symbol string, units float64, isIndex bool) domain.MetricRecord {
	return domain.MetricRecord{
		Symbol:        symbol,
		Units:         units,
		IsIndex:       isIndex,
		DataAvailable: false,
	}
}

// changePct returns (last-ref)/ref*100, or nil when either input is missing
// or the reference is zero.
func changePct(last, ref *float64) *float64 {
	if last == nil || ref == nil || *ref == 0 {
		return nil
	}
	return domain.Float64((*last - *ref) / *ref * 100.0)
}
