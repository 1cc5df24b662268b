package engine

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedInput marks series that fail the ingestion preconditions:
// unsorted or duplicate dates, nonpositive prices, or too few bars for the
// configured lookbacks. Runs never start on such input.
var ErrMalformedInput = errors.New("malformed input series")

// Bar is one trading day. Prices are decimals for exact money math at the
// trade level; float64 is used only inside indicator columns.
type Bar struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// ValidateSeries fails fast on anything the simulator cannot walk safely.
func ValidateSeries(bars []Bar, cfg Config) error {
	need := cfg.LongestLookback()
	if len(bars) < need {
		return fmt.Errorf("%w: fewer than %d bars available for MACD(%d,%d,%d)",
			ErrMalformedInput, need, cfg.MACDShort, cfg.MACDLong, cfg.MACDSignal)
	}
	for i, b := range bars {
		if !b.Open.IsPositive() || !b.High.IsPositive() || !b.Low.IsPositive() || !b.Close.IsPositive() {
			return fmt.Errorf("%w: nonpositive price at %s", ErrMalformedInput, b.Date.Format("2006-01-02"))
		}
		if i == 0 {
			continue
		}
		if !bars[i-1].Date.Before(b.Date) {
			return fmt.Errorf("%w: dates not strictly ascending at %s", ErrMalformedInput, b.Date.Format("2006-01-02"))
		}
	}
	return nil
}

// SortAndDedup orders bars ascending by date and keeps the last bar seen for
// a duplicated date, mirroring the CSV loader behavior for re-exported files.
func SortAndDedup(bars []Bar) []Bar {
	if len(bars) < 2 {
		return bars
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	uniq := bars[:0:0]
	for _, b := range bars {
		if n := len(uniq); n > 0 && uniq[n-1].Date.Equal(b.Date) {
			uniq[n-1] = b
			continue
		}
		uniq = append(uniq, b)
	}
	return uniq
}
