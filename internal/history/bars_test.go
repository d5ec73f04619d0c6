package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekStartClose(t *testing.T) {
	// Wed 2024-01-17; the ISO week starts Mon 2024-01-15
	now := day(2024, time.January, 17)

	tests := []struct {
		name     string
		bars     []Bar
		expected *float64
	}{
		{
			name: "monday bar is the anchor",
			bars: []Bar{
				{Date: day(2024, time.January, 12), Close: 98},
				{Date: day(2024, time.January, 15), Close: 100},
				{Date: day(2024, time.January, 16), Close: 101},
			},
			expected: float64Ptr(100),
		},
		{
			name: "tuesday bar when monday was a holiday",
			bars: []Bar{
				{Date: day(2024, time.January, 12), Close: 98},
				{Date: day(2024, time.January, 16), Close: 101},
			},
			expected: float64Ptr(101),
		},
		{
			name: "no bar inside the week",
			bars: []Bar{
				{Date: day(2024, time.January, 12), Close: 98},
			},
			expected: nil,
		},
		{
			name:     "empty history",
			bars:     nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeekStartClose(tt.bars, now)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.expected, *got, 1e-9)
		})
	}
}

func TestWeekStartClose_YearBoundary(t *testing.T) {
	// Wed 2025-01-01 belongs to ISO week 1 of 2025, which starts
	// Mon 2024-12-30
	now := day(2025, time.January, 1)
	bars := []Bar{
		{Date: day(2024, time.December, 27), Close: 95},
		{Date: day(2024, time.December, 30), Close: 96},
		{Date: day(2024, time.December, 31), Close: 97},
	}

	got := WeekStartClose(bars, now)
	require.NotNil(t, got)
	assert.InDelta(t, 96, *got, 1e-9)
}

func TestMonthStartClose(t *testing.T) {
	now := day(2024, time.March, 20)

	bars := []Bar{
		{Date: day(2024, time.February, 29), Close: 90},
		{Date: day(2024, time.March, 4), Close: 92}, // first trading day of March
		{Date: day(2024, time.March, 5), Close: 93},
	}

	got := MonthStartClose(bars, now)
	require.NotNil(t, got)
	assert.InDelta(t, 92, *got, 1e-9)

	assert.Nil(t, MonthStartClose([]Bar{{Date: day(2024, time.February, 29), Close: 90}}, now))
}

func TestRange52Week(t *testing.T) {
	bars := []Bar{
		{Date: day(2024, time.January, 2), Close: 100, High: 105, Low: 99},
		{Date: day(2024, time.January, 3), Close: 110, High: 112, Low: 108},
		{Date: day(2024, time.January, 4), Close: 95}, // close-only bar
	}

	low, high := Range52Week(bars)
	require.NotNil(t, low)
	require.NotNil(t, high)
	assert.InDelta(t, 95, *low, 1e-9)
	assert.InDelta(t, 112, *high, 1e-9)
}

func TestRange52Week_Empty(t *testing.T) {
	low, high := Range52Week(nil)
	assert.Nil(t, low)
	assert.Nil(t, high)
}

func TestSort(t *testing.T) {
	bars := []Bar{
		{Date: day(2024, time.January, 3), Close: 2},
		{Date: day(2024, time.January, 1), Close: 1},
		{Date: day(2024, time.January, 2), Close: 3},
	}
	Sort(bars)
	assert.Equal(t, day(2024, time.January, 1), bars[0].Date)
	assert.Equal(t, day(2024, time.January, 3), bars[2].Date)
}

func float64Ptr(v float64) *float64 {
	return &v
}
