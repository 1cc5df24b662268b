package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTracker(t *SignalTracker, upTo int) *Action {
	for i := 1; i <= upTo; i++ {
		if act := t.OnBar(i); act != nil {
			return act
		}
	}
	return nil
}

func TestTrackerFiresOnTriggerBar(t *testing.T) {
	cfg := DefaultConfig()
	bars := flatBars(40, 100)
	f := neutralFrame(40, 100)
	// Golden cross landing already above the zero line in an uptrend
	// confirms without waiting.
	f.MACD[15], f.Signal[15] = 0.1, 0.05
	reshift(f)

	tr := NewSignalTracker(bars, f, cfg, nil)
	act := runTracker(tr, 15)

	require.NotNil(t, act)
	assert.Equal(t, SignalBuy, act.Kind)
	assert.Equal(t, 15, act.Index)
	assert.True(t, tr.Long())
	assert.Nil(t, tr.Pending())
}

func TestTrackerConfirmsPendingBuy(t *testing.T) {
	cfg := DefaultConfig()
	bars := flatBars(40, 100)
	f := neutralFrame(40, 100)
	goldenThenZeroCross(f)

	tr := NewSignalTracker(bars, f, cfg, nil)

	assert.Nil(t, tr.OnBar(15))
	require.NotNil(t, tr.Pending(), "trigger bar must arm a pending buy")
	assert.Equal(t, SignalBuy, tr.Pending().Kind)

	assert.Nil(t, tr.OnBar(16))
	act := tr.OnBar(17)

	require.NotNil(t, act)
	assert.Equal(t, ReasonUptrendZeroCross, act.Reason)
	assert.Equal(t, 17, act.Index)
	assert.True(t, tr.Long())
	assert.Nil(t, tr.Pending())
}

func TestTrackerExpiresUnconfirmedSignal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowDays = 3
	bars := flatBars(40, 100)
	f := neutralFrame(40, 100)
	f.MACD[15], f.Signal[15] = -0.4, -0.5
	reshift(f)

	tr := NewSignalTracker(bars, f, cfg, nil)

	// Trigger bar counts against the window.
	assert.Nil(t, tr.OnBar(15))
	require.NotNil(t, tr.Pending())
	assert.Equal(t, 2, tr.Pending().Remaining)

	assert.Nil(t, tr.OnBar(16))
	assert.Nil(t, tr.OnBar(17))
	assert.Nil(t, tr.Pending(), "signal must lapse once the window is spent")
	assert.False(t, tr.Long())

	var expired bool
	for _, e := range tr.Events().Events {
		if e.Type == EventPendingExpired {
			expired = true
		}
	}
	assert.True(t, expired)
}

func TestTrackerSellFiresOnOverboughtRSI(t *testing.T) {
	cfg := DefaultConfig()
	n := 40
	bars := flatBars(n, 100)
	f := neutralFrame(n, 100)
	for i := 0; i <= 20; i++ {
		f.MACD[i], f.Signal[i] = 1, 0
	}
	f.MACD[21], f.Signal[21] = 0.2, 0.5
	reshift(f)
	f.RSI[21] = 80

	tr := NewSignalTracker(bars, f, cfg, nil)
	tr.long = true

	act := runTracker(tr, 21)

	require.NotNil(t, act)
	assert.Equal(t, SignalSell, act.Kind)
	assert.Equal(t, 21, act.Index)
	assert.Equal(t, ReasonRangeOverboughtRSI, act.Reason)
	assert.False(t, tr.Long())
}

func TestTrackerConfirmsPendingSellOnZeroCross(t *testing.T) {
	cfg := DefaultConfig()
	n := 40
	bars := flatBars(n, 100)
	f := neutralFrame(n, 100)
	// ADX below threshold keeps every bar in range.
	for i := range f.ADX {
		f.ADX[i] = 10
	}
	for i := 0; i <= 20; i++ {
		f.MACD[i], f.Signal[i] = 1, 0
	}
	f.MACD[21], f.Signal[21] = 0.2, 0.5
	for i := 22; i < n; i++ {
		f.MACD[i], f.Signal[i] = -0.3, 0.5
	}
	reshift(f)

	tr := NewSignalTracker(bars, f, cfg, nil)
	tr.long = true

	assert.Nil(t, tr.OnBar(21))
	require.NotNil(t, tr.Pending())
	assert.Equal(t, SignalSell, tr.Pending().Kind)

	act := tr.OnBar(22)

	require.NotNil(t, act)
	assert.Equal(t, ReasonRangeZeroCrossExit, act.Reason)
	assert.Equal(t, 22, act.Index)
	assert.False(t, tr.Long())
}
