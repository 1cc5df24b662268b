package engine

import (
	"go.uber.org/zap"
)

type SignalKind int

const (
	SignalBuy SignalKind = iota
	SignalSell
)

func (k SignalKind) String() string {
	if k == SignalSell {
		return "sell"
	}
	return "buy"
}

// PendingSignal is a triggered crossover waiting for a confirming condition.
// It is advanced exactly once per bar and expires when Remaining reaches
// zero; nothing outside the tracker mutates it.
type PendingSignal struct {
	Kind      SignalKind
	Remaining int
	Origin    string
}

// Action is a confirmed buy or sell decision at a bar.
type Action struct {
	Kind   SignalKind
	Index  int
	Reason string
}

// SignalTracker applies the entry/exit rule set one bar at a time with no
// forward scans, for streaming use where the future is unknown. It tracks
// long/flat state only; fills, cash and the ledger stay with the caller.
type SignalTracker struct {
	cfg     Config
	bars    []Bar
	frame   *Frame
	pending *PendingSignal
	long    bool
	events  EventLog
	log     *zap.Logger
}

// NewSignalTracker prepares a tracker over a precomputed frame. A nil
// logger disables logging.
func NewSignalTracker(bars []Bar, frame *Frame, cfg Config, logger *zap.Logger) *SignalTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignalTracker{cfg: cfg, bars: bars, frame: frame, log: logger}
}

// Pending returns the live pending signal, if any.
func (t *SignalTracker) Pending() *PendingSignal { return t.pending }

// Long reports the tracked position state.
func (t *SignalTracker) Long() bool { return t.long }

// Events exposes the diagnostic trace.
func (t *SignalTracker) Events() *EventLog { return &t.events }

// OnBar advances the tracker by one bar and returns a confirmed action, or
// nil. Crossover detection may arm a new pending signal and confirm it on
// the same bar; an armed signal is decremented once per bar regardless.
func (t *SignalTracker) OnBar(i int) *Action {
	f := t.frame
	if i < 1 || !f.HasMACD(i) {
		return nil
	}

	if !t.long && f.MACDPrev[i] <= f.SignalPrev[i] && f.MACD[i] > f.Signal[i] {
		t.arm(SignalBuy, SignalMACDGoldenCross, i)
		// Same-bar confirmations checked immediately after arming.
		if f.MACD[i] >= 0 && Classify(f, i, t.cfg) == TrendUp {
			return t.fire(i, "MACD above zero in uptrend")
		}
		if t.bbCrossUp(i) && Classify(f, i, t.cfg) != TrendDown {
			return t.fire(i, ReasonBBBreakout)
		}
	}

	if t.long && f.MACDPrev[i] >= f.SignalPrev[i] && f.MACD[i] < f.Signal[i] {
		t.arm(SignalSell, SignalMACDDeadCross, i)
		if f.MACD[i] < 0 && f.MACDPrev[i] >= 0 && Classify(f, i, t.cfg) == TrendUp {
			return t.fire(i, ReasonTrendZeroCrossExit)
		}
		if t.bbCrossDown(i) {
			return t.fire(i, ReasonRangeBBBreakdown)
		}
		if f.HasRSI(i) && f.RSI[i] > t.cfg.RSIOverbought {
			return t.fire(i, ReasonRangeOverboughtRSI)
		}
	}

	if t.pending == nil {
		return nil
	}
	t.pending.Remaining--
	if act := t.evalPending(i); act != nil {
		return act
	}
	if t.pending.Remaining <= 0 {
		t.events.Append(Event{Date: t.bars[i].Date, Type: EventPendingExpired, Reason: t.pending.Origin})
		t.log.Debug("pending signal expired",
			zap.Time("date", t.bars[i].Date),
			zap.String("kind", t.pending.Kind.String()))
		t.pending = nil
	}
	return nil
}

func (t *SignalTracker) arm(kind SignalKind, origin string, i int) {
	t.pending = &PendingSignal{Kind: kind, Remaining: t.cfg.WindowDays, Origin: origin}
	ev := EventGoldenCross
	if kind == SignalSell {
		ev = EventDeadCross
	}
	t.events.Append(Event{Date: t.bars[i].Date, Type: ev, Reason: origin})
}

func (t *SignalTracker) fire(i int, reason string) *Action {
	kind := t.pending.Kind
	t.long = kind == SignalBuy
	t.pending = nil
	return &Action{Kind: kind, Index: i, Reason: reason}
}

func (t *SignalTracker) evalPending(i int) *Action {
	f := t.frame
	if t.pending.Kind == SignalBuy {
		trend := Classify(f, i, t.cfg)
		if f.MACD[i] >= 0 && f.MACDPrev[i] < 0 && trend == TrendUp {
			return t.fire(i, ReasonUptrendZeroCross)
		}
		if t.bbCrossUp(i) && trend != TrendDown {
			return t.fire(i, ReasonBBBreakout)
		}
		if f.HasRSI(i) && f.RSI[i] < t.cfg.RSIOversold && trend == TrendRange {
			return t.fire(i, ReasonRangeOversoldRSI)
		}
		return nil
	}

	if f.MACD[i] < 0 && f.MACDPrev[i] >= 0 {
		if Classify(f, i, t.cfg) == TrendUp {
			return t.fire(i, ReasonTrendZeroCrossExit)
		}
		return t.fire(i, ReasonRangeZeroCrossExit)
	}
	if Classify(f, i, t.cfg) != TrendUp {
		if t.bbCrossDown(i) {
			return t.fire(i, ReasonRangeBBBreakdown)
		}
		if f.HasRSI(i) && f.RSI[i] > t.cfg.RSIOverbought {
			return t.fire(i, ReasonRangeOverboughtRSI)
		}
	}
	return nil
}

func (t *SignalTracker) bbCrossUp(i int) bool {
	f := t.frame
	if i < 1 || !f.HasBB(i) || !f.HasBB(i-1) {
		return false
	}
	return f.Close[i] > f.BBMid[i] && f.Close[i-1] <= f.BBMid[i-1]
}

func (t *SignalTracker) bbCrossDown(i int) bool {
	f := t.frame
	if i < 1 || !f.HasBB(i) || !f.HasBB(i-1) {
		return false
	}
	return f.Close[i-1] >= f.BBMid[i-1] && f.Close[i] < f.BBMid[i]
}
