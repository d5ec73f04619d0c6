// Package history derives period anchors from provider daily bars.
// Providers return bars in whatever window they support; the helpers here
// pick out the closes the metrics engine anchors on. Bar dates are taken as
// reported by the provider, which follows the instrument's own trading
// calendar.
package history

import (
	"sort"
	"time"
)

// Bar is one daily price bar. High and Low are zero when the provider only
// supplies closes (Alpha Vantage compact series).
type Bar struct {
	Date  time.Time
	Close float64
	High  float64
	Low   float64
}

// Sort orders bars by date ascending, in place
func Sort(bars []Bar) {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
}

// WeekStartClose returns the close of the first trading day of the ISO week
// containing now. Nil when no bar falls inside that week; the anchor is never
// approximated from a neighbouring close.
func WeekStartClose(bars []Bar, now time.Time) *float64 {
	year, week := now.ISOWeek()
	return firstClose(bars, func(d time.Time) bool {
		y, w := d.ISOWeek()
		return y == year && w == week
	})
}

// MonthStartClose returns the close of the first trading day of the calendar
// month containing now, or nil when no bar falls inside that month.
func MonthStartClose(bars []Bar, now time.Time) *float64 {
	return firstClose(bars, func(d time.Time) bool {
		return d.Year() == now.Year() && d.Month() == now.Month()
	})
}

func firstClose(bars []Bar, in func(time.Time) bool) *float64 {
	var best *Bar
	for i := range bars {
		if !in(bars[i].Date) {
			continue
		}
		if best == nil || bars[i].Date.Before(best.Date) {
			best = &bars[i]
		}
	}
	if best == nil || best.Close <= 0 {
		return nil
	}
	close := best.Close
	return &close
}

// Range52Week returns the lowest low and highest high across the bars,
// falling back to closes for bars without intraday bounds. Both results are
// nil when the slice is empty or holds no positive prices.
func Range52Week(bars []Bar) (low, high *float64) {
	for _, b := range bars {
		lo, hi := b.Low, b.High
		if lo <= 0 {
			lo = b.Close
		}
		if hi <= 0 {
			hi = b.Close
		}
		if lo <= 0 || hi <= 0 {
			continue
		}
		if low == nil || lo < *low {
			v := lo
			low = &v
		}
		if high == nil || hi > *high {
			v := hi
			high = &v
		}
	}
	return low, high
}
