package engine

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Position is the single live holding of a run. At most one exists at any
// point of the walk; it is created on an entry fill and destroyed on exit
// or forced liquidation.
type Position struct {
	EntryDate  time.Time
	EntryPrice decimal.Decimal
	Quantity   int64
	Reason     string
}

// candidate tags a rule match with the bar index it resolves to. When
// several candidates fire, the earliest index wins; ties keep the order the
// rules were collected in.
type candidate struct {
	idx    int
	reason string
}

func pickEarliest(cands []candidate) (candidate, bool) {
	if len(cands) == 0 {
		return candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.idx < best.idx {
			best = c
		}
	}
	return best, true
}

// Simulator walks one instrument's series bar by bar, resolving triggered
// signals against a bounded forward window of already-known bars. Purely
// sequential and deterministic; each instance owns its series, cash and
// ledger exclusively.
type Simulator struct {
	cfg    Config
	symbol string
	bars   []Bar
	frame  *Frame

	cash   decimal.Decimal
	pos    *Position
	trades []Trade
	events EventLog

	log *zap.Logger
}

// NewSimulator validates the series, computes the indicator frame over the
// entire series and prepares a run. A nil logger disables logging.
func NewSimulator(symbol string, bars []Bar, cfg Config, logger *zap.Logger) (*Simulator, error) {
	if err := ValidateSeries(bars, cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		cfg:    cfg,
		symbol: symbol,
		bars:   bars,
		frame:  ComputeFrame(bars, cfg),
		cash:   cfg.InitialCapital,
		log:    logger.With(zap.String("symbol", symbol)),
	}, nil
}

// Frame exposes the computed indicator columns, read-only by convention.
func (s *Simulator) Frame() *Frame { return s.frame }

// Events exposes the diagnostic trace of the last Run.
func (s *Simulator) Events() *EventLog { return &s.events }

// Run executes the walk and reduces it into a RunSummary. The cursor starts
// at index 1 (crossovers need a previous bar) and only ever moves forward:
// entries jump past the fill bar, exits land on the fill bar where the walk
// resumes, everything else advances by one.
func (s *Simulator) Run() RunSummary {
	n := len(s.bars)
	i := 1
	for i < n {
		if s.pos == nil {
			if next, ok := s.tryEnter(i); ok {
				i = next
				continue
			}
		} else {
			if next, ok := s.tryExit(i); ok {
				i = next
				continue
			}
		}
		i++
	}

	if s.pos != nil {
		s.closeAt(n-1, ReasonForcedLiquidation, EventForcedExit)
	}

	return newRunSummary(s.symbol, s.cfg, s.cash, s.trades, s.lastSignal())
}

// tryEnter evaluates the entry rules at bar i. It returns the next cursor
// position and true when the cursor should jump; false leaves the outer
// loop to advance by one.
func (s *Simulator) tryEnter(i int) (int, bool) {
	if !s.goldenCross(i) {
		return 0, false
	}
	s.events.Append(Event{Date: s.bars[i].Date, Type: EventGoldenCross})
	s.log.Debug("golden cross",
		zap.Time("date", s.bars[i].Date),
		zap.Float64("macd", s.frame.MACD[i]),
		zap.Float64("signal", s.frame.Signal[i]))

	end := s.windowEnd(i)
	trend := Classify(s.frame, i, s.cfg)

	var cands []candidate
	if j := s.scanZeroCrossUp(i, end); j >= 0 && trend == TrendUp {
		cands = append(cands, candidate{j, ReasonUptrendZeroCross})
	}
	if j := s.scanBBCrossUp(i, end); j >= 0 && trend != TrendDown {
		cands = append(cands, candidate{j, ReasonBBBreakout})
	}
	if s.frame.HasRSI(i) && s.frame.RSI[i] < s.cfg.RSIOversold && trend == TrendRange {
		cands = append(cands, candidate{i, ReasonRangeOversoldRSI})
	}

	c, ok := pickEarliest(cands)
	if !ok {
		return 0, false
	}

	fill := s.bars[c.idx]
	price := fill.Close.Mul(s.cfg.EntrySlippage)
	qty := s.cash.Div(price).IntPart()
	if qty <= 0 {
		// Not enough cash for a single share; the signal lapses.
		s.events.Append(Event{Date: fill.Date, Type: EventNoFill, Reason: c.reason, Price: price})
		return 0, false
	}

	s.pos = &Position{
		EntryDate:  fill.Date,
		EntryPrice: price,
		Quantity:   qty,
		Reason:     c.reason,
	}
	s.cash = s.cash.Sub(price.Mul(decimal.NewFromInt(qty)))
	s.events.Append(Event{Date: fill.Date, Type: EventEntry, Reason: c.reason, Price: price})
	s.log.Debug("entry",
		zap.Time("date", fill.Date),
		zap.String("reason", c.reason),
		zap.String("price", price.String()),
		zap.Int64("qty", qty))
	return c.idx + 1, true
}

// tryExit evaluates the exit rules at bar i while a position is open.
func (s *Simulator) tryExit(i int) (int, bool) {
	if !s.deadCross(i) {
		return 0, false
	}
	s.events.Append(Event{Date: s.bars[i].Date, Type: EventDeadCross})
	s.log.Debug("dead cross",
		zap.Time("date", s.bars[i].Date),
		zap.Float64("macd", s.frame.MACD[i]),
		zap.Float64("signal", s.frame.Signal[i]))

	end := s.windowEnd(i)

	var cands []candidate
	switch Classify(s.frame, i, s.cfg) {
	case TrendUp:
		if j := s.scanZeroCrossDown(i, end); j >= 0 {
			cands = append(cands, candidate{j, ReasonTrendZeroCrossExit})
		}
	case TrendDown:
		cands = append(cands, candidate{i, ReasonDowntrendExit})
	default:
		if j := s.scanZeroCrossDown(i, end); j >= 0 {
			cands = append(cands, candidate{j, ReasonRangeZeroCrossExit})
		}
		if j := s.scanBBCrossDown(i, end); j >= 0 {
			cands = append(cands, candidate{j, ReasonRangeBBBreakdown})
		}
		if s.frame.HasRSI(i) && s.frame.RSI[i] > s.cfg.RSIOverbought {
			cands = append(cands, candidate{i, ReasonRangeOverboughtRSI})
		}
	}

	c, ok := pickEarliest(cands)
	if !ok {
		return 0, false
	}

	// Same-day guard: never close on the bar the position was opened on.
	if s.bars[c.idx].Date.Equal(s.pos.EntryDate) {
		return i + 1, true
	}

	s.closeAt(c.idx, c.reason, EventExit)
	return c.idx, true
}

// closeAt settles the open position at bar idx's close with exit slippage
// and appends the trade to the ledger.
func (s *Simulator) closeAt(idx int, reason string, ev EventType) {
	bar := s.bars[idx]
	price := bar.Close.Mul(s.cfg.ExitSlippage)
	qty := decimal.NewFromInt(s.pos.Quantity)
	s.cash = s.cash.Add(price.Mul(qty))

	t := Trade{
		EntryDate:   s.pos.EntryDate,
		EntryPrice:  s.pos.EntryPrice,
		ExitDate:    bar.Date,
		ExitPrice:   price,
		Quantity:    s.pos.Quantity,
		PnL:         price.Sub(s.pos.EntryPrice).Mul(qty),
		ReturnPct:   (price.Div(s.pos.EntryPrice).InexactFloat64() - 1) * 100,
		HoldingDays: int(bar.Date.Sub(s.pos.EntryDate).Hours() / 24),
		EntryReason: s.pos.Reason,
		ExitReason:  reason,
	}
	s.trades = append(s.trades, t)
	s.events.Append(Event{Date: bar.Date, Type: ev, Reason: reason, Price: price})
	s.log.Debug("exit",
		zap.Time("date", bar.Date),
		zap.String("reason", reason),
		zap.String("price", price.String()),
		zap.String("pnl", t.PnL.String()))
	s.pos = nil
}

func (s *Simulator) goldenCross(i int) bool {
	if !s.frame.HasMACD(i) {
		return false
	}
	return s.frame.MACDPrev[i] <= s.frame.SignalPrev[i] && s.frame.MACD[i] > s.frame.Signal[i]
}

func (s *Simulator) deadCross(i int) bool {
	if !s.frame.HasMACD(i) {
		return false
	}
	return s.frame.MACDPrev[i] >= s.frame.SignalPrev[i] && s.frame.MACD[i] < s.frame.Signal[i]
}

// windowEnd returns the last bar index whose date falls within WindowDays
// calendar days of bar i. The trigger bar itself is part of the window.
func (s *Simulator) windowEnd(i int) int {
	limit := s.bars[i].Date.AddDate(0, 0, s.cfg.WindowDays)
	j := i
	for j+1 < len(s.bars) && !s.bars[j+1].Date.After(limit) {
		j++
	}
	return j
}

// scanZeroCrossUp finds the first bar in [from, to] where MACD crosses the
// zero line upward. The prev value comes from the full series, so the
// window's first bar may itself resolve the cross.
func (s *Simulator) scanZeroCrossUp(from, to int) int {
	for j := from; j <= to; j++ {
		if s.frame.MACD[j] >= 0 && s.frame.MACDPrev[j] < 0 {
			return j
		}
	}
	return -1
}

func (s *Simulator) scanZeroCrossDown(from, to int) int {
	for j := from; j <= to; j++ {
		if s.frame.MACD[j] < 0 && s.frame.MACDPrev[j] >= 0 {
			return j
		}
	}
	return -1
}

// scanBBCrossUp finds the first close crossing above the mid band inside
// (from, to]. The bar before the window start is outside the window, so the
// first window bar can never complete a cross.
func (s *Simulator) scanBBCrossUp(from, to int) int {
	for j := from + 1; j <= to; j++ {
		if !s.frame.HasBB(j) || !s.frame.HasBB(j-1) {
			continue
		}
		if s.frame.Close[j] > s.frame.BBMid[j] && s.frame.Close[j-1] <= s.frame.BBMid[j-1] {
			return j
		}
	}
	return -1
}

func (s *Simulator) scanBBCrossDown(from, to int) int {
	for j := from + 1; j <= to; j++ {
		if !s.frame.HasBB(j) || !s.frame.HasBB(j-1) {
			continue
		}
		if s.frame.Close[j-1] >= s.frame.BBMid[j-1] && s.frame.Close[j] < s.frame.BBMid[j] {
			return j
		}
	}
	return -1
}

// lastSignal compares only the final two bars, independent of position
// state. The Bollinger check runs second and overwrites a MACD signal on
// the same side.
func (s *Simulator) lastSignal() LastSignal {
	n := len(s.bars)
	var last LastSignal
	if n < 2 {
		return last
	}
	cur, prev := n-1, n-2
	f := s.frame

	if f.MACD[prev] <= f.Signal[prev] && f.MACD[cur] > f.Signal[cur] {
		last.Buy = SignalMACDGoldenCross
	} else if f.MACD[prev] >= f.Signal[prev] && f.MACD[cur] < f.Signal[cur] {
		last.Sell = SignalMACDDeadCross
	}

	if s.frame.HasBB(prev) && s.frame.HasBB(cur) {
		if f.Close[prev] <= f.BBMid[prev] && f.Close[cur] > f.BBMid[cur] {
			last.Buy = SignalBBCrossUp
		} else if f.Close[prev] >= f.BBMid[prev] && f.Close[cur] < f.BBMid[cur] {
			last.Sell = SignalBBCrossDown
		}
	}
	return last
}
