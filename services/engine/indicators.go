package engine

import "math"

// Frame holds the per-bar derived columns for a whole series, computed once
// before any simulation and read-only afterwards. Columns are float64 with
// NaN marking "not yet available" (rolling window not fully populated); the
// availability predicates below are the only sanctioned way to gate rule
// evaluation on them. NaN never compares true, so a rule reading an
// unavailable value can only ever see "condition not met".
type Frame struct {
	Close []float64

	EMAShort   []float64
	EMALong    []float64
	MACD       []float64
	Signal     []float64
	MACDPrev   []float64
	SignalPrev []float64

	BBMid   []float64
	BBUpper []float64
	BBLower []float64

	RSI []float64

	ATR     []float64
	PlusDI  []float64
	MinusDI []float64
	ADX     []float64

	MA      []float64
	MASlope []float64
}

// ComputeFrame derives every indicator column over the full series.
// Deterministic: same bars and config always produce identical output.
func ComputeFrame(bars []Bar, cfg Config) *Frame {
	n := len(bars)
	f := &Frame{Close: make([]float64, n)}
	high := make([]float64, n)
	low := make([]float64, n)
	for i, b := range bars {
		f.Close[i] = b.Close.InexactFloat64()
		high[i] = b.High.InexactFloat64()
		low[i] = b.Low.InexactFloat64()
	}

	// MACD family. EMAs are seeded from the first value with alpha=2/(N+1),
	// so every column is defined from index 0; the prev copies shift by one.
	f.EMAShort = ema(f.Close, cfg.MACDShort)
	f.EMALong = ema(f.Close, cfg.MACDLong)
	f.MACD = sub(f.EMAShort, f.EMALong)
	f.Signal = ema(f.MACD, cfg.MACDSignal)
	f.MACDPrev = shift(f.MACD)
	f.SignalPrev = shift(f.Signal)

	// Bollinger bands on a rolling sample stddev.
	f.BBMid = sma(f.Close, cfg.BBWindow)
	std := rollingStd(f.Close, cfg.BBWindow)
	f.BBUpper = make([]float64, n)
	f.BBLower = make([]float64, n)
	for i := 0; i < n; i++ {
		f.BBUpper[i] = f.BBMid[i] + cfg.BBStdDev*std[i]
		f.BBLower[i] = f.BBMid[i] - cfg.BBStdDev*std[i]
	}

	f.RSI = rsi(f.Close, cfg.RSIWindow)
	f.ATR, f.PlusDI, f.MinusDI, f.ADX = adx(high, low, f.Close, cfg.ADXWindow)

	f.MA = sma(f.Close, cfg.MAWindow)
	f.MASlope = shiftDiff(f.MA)

	return f
}

// HasMACD reports whether the crossover columns are populated at i, which
// needs the shifted prev values and therefore i >= 1.
func (f *Frame) HasMACD(i int) bool {
	return !math.IsNaN(f.MACD[i]) && !math.IsNaN(f.Signal[i]) &&
		!math.IsNaN(f.MACDPrev[i]) && !math.IsNaN(f.SignalPrev[i])
}

// HasBB reports whether the Bollinger mid band is populated at i.
func (f *Frame) HasBB(i int) bool { return !math.IsNaN(f.BBMid[i]) }

// HasRSI reports whether RSI is populated at i.
func (f *Frame) HasRSI(i int) bool { return !math.IsNaN(f.RSI[i]) }

// ema smooths with alpha=2/(span+1), seeded directly from the first value
// (no bias correction), so ema[i] = alpha*x[i] + (1-alpha)*ema[i-1].
func ema(src []float64, span int) []float64 {
	out := make([]float64, len(src))
	if len(src) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = src[0]
	for i := 1; i < len(src); i++ {
		out[i] = alpha*src[i] + (1-alpha)*out[i-1]
	}
	return out
}

func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// shift returns the series moved forward one bar; index 0 is unavailable.
func shift(src []float64) []float64 {
	out := make([]float64, len(src))
	if len(src) == 0 {
		return out
	}
	out[0] = math.NaN()
	copy(out[1:], src[:len(src)-1])
	return out
}

// shiftDiff is the first difference, unavailable where either term is.
func shiftDiff(src []float64) []float64 {
	out := make([]float64, len(src))
	if len(src) == 0 {
		return out
	}
	out[0] = math.NaN()
	for i := 1; i < len(src); i++ {
		out[i] = src[i] - src[i-1]
	}
	return out
}

// sma is a simple moving average, NaN until the window fills.
func sma(src []float64, window int) []float64 {
	out := make([]float64, len(src))
	var sum float64
	for i := range src {
		sum += src[i]
		if i >= window {
			sum -= src[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// rollingStd is the rolling sample standard deviation (ddof=1).
func rollingStd(src []float64, window int) []float64 {
	out := make([]float64, len(src))
	for i := range src {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		var mean float64
		for j := i - window + 1; j <= i; j++ {
			mean += src[j]
		}
		mean /= float64(window)
		var ss float64
		for j := i - window + 1; j <= i; j++ {
			d := src[j] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// rsi uses EMA smoothing of gains and losses (span=window), not true Wilder
// smoothing. A zero average loss saturates to 100; a series with neither
// gains nor losses reads as neutral 50. Both are defined semantics.
func rsi(close []float64, window int) []float64 {
	n := len(close)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := close[i] - close[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	avgGain := ema(gains, window)
	avgLoss := ema(losses, window)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		switch {
		case avgLoss[i] > 0:
			rs := avgGain[i] / avgLoss[i]
			out[i] = 100 - 100/(1+rs)
		case avgGain[i] > 0:
			out[i] = 100
		default:
			out[i] = 50
		}
	}
	return out
}

// adx computes ATR, +DI, -DI and ADX with EMA(span=window) smoothing
// throughout. Zero denominators (flat bars, +DI+-DI == 0) resolve to zero
// rather than propagating infinities.
func adx(high, low, close []float64, window int) (atr, plusDI, minusDI, adxOut []float64) {
	n := len(high)
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 0; i < n; i++ {
		if i == 0 {
			tr[i] = high[i] - low[i]
			continue
		}
		tr[i] = math.Max(high[i]-low[i],
			math.Max(math.Abs(high[i]-close[i-1]), math.Abs(low[i]-close[i-1])))
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > 0 && up > down {
			plusDM[i] = up
		}
		if down > 0 && down > up {
			minusDM[i] = down
		}
	}

	atr = ema(tr, window)
	smPlus := ema(plusDM, window)
	smMinus := ema(minusDM, window)

	plusDI = make([]float64, n)
	minusDI = make([]float64, n)
	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		if atr[i] > 0 {
			plusDI[i] = 100 * smPlus[i] / atr[i]
			minusDI[i] = 100 * smMinus[i] / atr[i]
		}
		if sum := plusDI[i] + minusDI[i]; sum > 0 {
			dx[i] = math.Abs(plusDI[i]-minusDI[i]) / sum
		}
	}
	smDX := ema(dx, window)
	adxOut = make([]float64, n)
	for i := 0; i < n; i++ {
		adxOut[i] = 100 * smDX[i]
	}
	return atr, plusDI, minusDI, adxOut
}
