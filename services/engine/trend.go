package engine

// Trend is the per-bar regime label. Range is the default whenever the
// stricter uptrend/downtrend predicates both fail, which also covers bars
// whose indicators are still unavailable (NaN comparisons are false).
type Trend int

const (
	TrendRange Trend = iota
	TrendUp
	TrendDown
)

func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "uptrend"
	case TrendDown:
		return "downtrend"
	default:
		return "range"
	}
}

// Classify labels bar i. Uptrend and downtrend are mutually exclusive by
// construction: uptrend needs +DI > -DI while downtrend needs -DI to lead
// by at least the margin.
func Classify(f *Frame, i int, cfg Config) Trend {
	adxStrong := f.ADX[i] >= cfg.ADXThreshold

	up := adxStrong && f.PlusDI[i] > f.MinusDI[i] &&
		(f.EMAShort[i] > f.EMALong[i] || f.MASlope[i] > 0)
	if up {
		return TrendUp
	}

	down := adxStrong && f.MinusDI[i] >= f.PlusDI[i]+cfg.TrendMargin &&
		(f.EMAShort[i] < f.EMALong[i] || f.MASlope[i] < 0) &&
		f.Close[i] < f.EMAShort[i]
	if down {
		return TrendDown
	}
	return TrendRange
}
