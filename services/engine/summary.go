package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry and exit reason tags, stable strings for ledgers and reports.
const (
	ReasonUptrendZeroCross   = "uptrend MACD zero-cross"
	ReasonBBBreakout         = "Bollinger mid-band breakout"
	ReasonRangeOversoldRSI   = "range oversold RSI entry"
	ReasonTrendZeroCrossExit = "trend MACD zero-cross exit"
	ReasonDowntrendExit      = "downtrend forced exit"
	ReasonRangeZeroCrossExit = "range MACD zero-cross exit"
	ReasonRangeBBBreakdown   = "range Bollinger breakdown"
	ReasonRangeOverboughtRSI = "range overbought RSI exit"
	ReasonForcedLiquidation  = "forced liquidation — period end"
)

// Last-signal reason tags (final two bars only).
const (
	SignalMACDGoldenCross = "MACD golden cross"
	SignalMACDDeadCross   = "MACD dead cross"
	SignalBBCrossUp       = "Bollinger mid-band cross up"
	SignalBBCrossDown     = "Bollinger mid-band cross down"
)

// Trade is an immutable ledger record written when a position closes.
type Trade struct {
	EntryDate   time.Time
	EntryPrice  decimal.Decimal
	ExitDate    time.Time
	ExitPrice   decimal.Decimal
	Quantity    int64
	PnL         decimal.Decimal
	ReturnPct   float64
	HoldingDays int
	EntryReason string
	ExitReason  string
}

// LastSignal snapshots whichever crossover condition holds across the final
// two bars, independent of position state. Empty string means no signal on
// that side.
type LastSignal struct {
	Buy  string
	Sell string
}

// Actionable reports whether either side fired.
func (s LastSignal) Actionable() bool { return s.Buy != "" || s.Sell != "" }

// RunSummary is the complete result of one simulated instrument.
type RunSummary struct {
	Symbol         string
	WindowDays     int
	InitialCapital decimal.Decimal
	FinalEquity    decimal.Decimal
	TotalReturnPct float64
	NumTrades      int
	WinRatePct     float64
	Trades         []Trade
	LastSignal     LastSignal
}

// newRunSummary reduces a finished walk into the run summary. The position
// is always fully liquidated by the end of a run, so final equity is the
// cash-only balance.
func newRunSummary(symbol string, cfg Config, cash decimal.Decimal, trades []Trade, last LastSignal) RunSummary {
	ret := 0.0
	if cfg.InitialCapital.IsPositive() {
		ret = cash.Sub(cfg.InitialCapital).Div(cfg.InitialCapital).InexactFloat64() * 100
	}
	wins := 0
	for _, t := range trades {
		if t.PnL.IsPositive() {
			wins++
		}
	}
	winRate := 0.0
	if len(trades) > 0 {
		winRate = float64(wins) / float64(len(trades)) * 100
	}
	return RunSummary{
		Symbol:         symbol,
		WindowDays:     cfg.WindowDays,
		InitialCapital: cfg.InitialCapital,
		FinalEquity:    cash,
		TotalReturnPct: ret,
		NumTrades:      len(trades),
		WinRatePct:     winRate,
		Trades:         trades,
		LastSignal:     last,
	}
}
