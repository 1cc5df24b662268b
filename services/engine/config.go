package engine

import "github.com/shopspring/decimal"

// Config carries every tunable of a run. It is passed explicitly to the
// simulator and the reporting side; nothing reads package-level state.
type Config struct {
	// Lookahead horizon for resolving a triggered signal, in calendar days.
	WindowDays int

	// Trend classification.
	ADXThreshold float64
	TrendMargin  float64

	// Capital and slippage. Slippage values are price multipliers applied
	// on fill (entry pays up, exit gives up).
	InitialCapital decimal.Decimal
	EntrySlippage  decimal.Decimal
	ExitSlippage   decimal.Decimal

	// Oscillator thresholds.
	RSIOversold   float64
	RSIOverbought float64

	// Indicator windows.
	MACDShort  int
	MACDLong   int
	MACDSignal int
	BBWindow   int
	BBStdDev   float64
	RSIWindow  int
	ADXWindow  int
	MAWindow   int
}

// DefaultConfig returns the production parameter set.
func DefaultConfig() Config {
	return Config{
		WindowDays:     20,
		ADXThreshold:   20,
		TrendMargin:    3,
		InitialCapital: decimal.NewFromInt(1_000_000),
		EntrySlippage:  decimal.NewFromFloat(1.001),
		ExitSlippage:   decimal.NewFromFloat(0.999),
		RSIOversold:    30,
		RSIOverbought:  72,
		MACDShort:      12,
		MACDLong:       26,
		MACDSignal:     9,
		BBWindow:       20,
		BBStdDev:       2,
		RSIWindow:      14,
		ADXWindow:      14,
		MAWindow:       20,
	}
}

// LongestLookback is the slowest indicator window; series shorter than this
// are rejected before simulation.
func (c Config) LongestLookback() int {
	longest := c.MACDLong
	for _, w := range []int{c.BBWindow, c.RSIWindow, c.ADXWindow, c.MAWindow, c.MACDShort, c.MACDSignal} {
		if w > longest {
			longest = w
		}
	}
	return longest
}
