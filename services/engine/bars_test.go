package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSeriesRejectsShortSeries(t *testing.T) {
	cfg := DefaultConfig()
	err := ValidateSeries(flatBars(25, 100), cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedInput)
	assert.Contains(t, err.Error(), "fewer than 26 bars")
}

func TestValidateSeriesRejectsNonpositivePrice(t *testing.T) {
	bars := flatBars(40, 100)
	bars[7].Close = decimal.Zero

	err := ValidateSeries(bars, DefaultConfig())
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestValidateSeriesRejectsUnsortedDates(t *testing.T) {
	bars := flatBars(40, 100)
	bars[10].Date, bars[11].Date = bars[11].Date, bars[10].Date

	err := ValidateSeries(bars, DefaultConfig())
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestValidateSeriesRejectsDuplicateDates(t *testing.T) {
	bars := flatBars(40, 100)
	bars[11].Date = bars[10].Date

	err := ValidateSeries(bars, DefaultConfig())
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestSortAndDedupKeepsLastForDuplicateDate(t *testing.T) {
	d := func(n int) time.Time {
		return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	}
	bar := func(n int, close float64) Bar {
		p := decimal.NewFromFloat(close)
		return Bar{Date: d(n), Open: p, High: p, Low: p, Close: p, Volume: decimal.NewFromInt(1)}
	}

	// Out of order with day 1 appearing twice; the later row wins.
	in := []Bar{bar(2, 102), bar(1, 101), bar(0, 100), bar(1, 999)}
	out := SortAndDedup(in)

	require.Len(t, out, 3)
	assert.True(t, out[0].Date.Equal(d(0)))
	assert.True(t, out[1].Date.Equal(d(1)))
	assert.True(t, out[1].Close.Equal(decimal.NewFromInt(999)))
	assert.True(t, out[2].Date.Equal(d(2)))
}
