package report

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swing-backtest/services/engine"
)

func sampleSummaries() []engine.RunSummary {
	day := func(n int) time.Time {
		return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	}
	return []engine.RunSummary{
		{
			Symbol:         "005930",
			FinalEquity:    decimal.NewFromInt(1_050_000),
			TotalReturnPct: 5.0,
			NumTrades:      2,
			WinRatePct:     50,
			Trades: []engine.Trade{
				{
					EntryDate:   day(0),
					EntryPrice:  decimal.RequireFromString("70070"),
					ExitDate:    day(10),
					ExitPrice:   decimal.RequireFromString("74925"),
					Quantity:    14,
					PnL:         decimal.RequireFromString("67970"),
					ReturnPct:   6.93,
					HoldingDays: 10,
					EntryReason: engine.ReasonUptrendZeroCross,
					ExitReason:  engine.ReasonTrendZeroCrossExit,
				},
			},
			LastSignal: engine.LastSignal{Buy: engine.SignalBBCrossUp},
		},
		{
			Symbol:         "000660",
			FinalEquity:    decimal.NewFromInt(990_000),
			TotalReturnPct: -1.0,
			NumTrades:      1,
			WinRatePct:     0,
		},
	}
}

func TestWriteTrades(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTrades(&buf, sampleSummaries()[0]))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t,
		"symbol,entry_date,entry_price,entry_reason,exit_date,exit_price,exit_reason,quantity,pnl,return_pct,holding_days",
		lines[0])
	assert.Contains(t, lines[1], "005930,2024-02-01,70070,")
	assert.Contains(t, lines[1], engine.ReasonUptrendZeroCross)
	assert.Contains(t, lines[1], ",14,67970,")
}

func TestWriteSummaries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummaries(&buf, sampleSummaries()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "005930,2,50.00,1050000,5.0000,"+engine.SignalBBCrossUp+",")
	assert.True(t, strings.HasSuffix(lines[2], ",,"), "no-signal instrument leaves both columns empty")
}

func TestBuildRollup(t *testing.T) {
	r := BuildRollup(sampleSummaries())

	assert.Equal(t, 2, r.Instruments)
	assert.Equal(t, 3, r.TotalTrades)
	assert.True(t, r.TotalEquity.Equal(decimal.NewFromInt(2_040_000)))
	assert.InDelta(t, 2.0, r.AvgReturnPct, 1e-9)
	assert.Equal(t, 1, r.WithSignal)
	assert.InDelta(t, -1.0, r.WorstReturnPct, 1e-9)
	assert.InDelta(t, 5.0, r.BestReturnPct, 1e-9)
}

func TestBuildRollupEmpty(t *testing.T) {
	r := BuildRollup(nil)
	assert.Zero(t, r.Instruments)
	assert.Zero(t, r.AvgReturnPct)
	assert.True(t, r.TotalEquity.IsZero())
}

func TestFormatMessageSkipsQuietInstruments(t *testing.T) {
	msg := FormatMessage(sampleSummaries())

	assert.Contains(t, msg, "005930: BUY ("+engine.SignalBBCrossUp+")")
	assert.NotContains(t, msg, "000660")
}

func TestFormatMessageAllQuiet(t *testing.T) {
	sums := sampleSummaries()[1:]
	assert.Empty(t, FormatMessage(sums))
}

func TestTelegramNotifier(t *testing.T) {
	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotChat = r.PostFormValue("chat_id")
		gotText = r.PostFormValue("text")
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", nil)
	// Point the bot API at the test server.
	n.Client = srv.Client()
	n.Client.Transport = rewriteHost(srv.URL)

	require.NoError(t, n.Notify(context.Background(), "hello"))
	assert.Equal(t, "/botTOKEN/sendMessage", gotPath)
	assert.Equal(t, "42", gotChat)
	assert.Equal(t, "hello", gotText)

	// Empty text must not hit the API.
	gotPath = ""
	require.NoError(t, n.Notify(context.Background(), ""))
	assert.Empty(t, gotPath)
}

type rewriteHost string

func (h rewriteHost) RoundTrip(req *http.Request) (*http.Response, error) {
	target := strings.TrimPrefix(string(h), "http://")
	req.URL.Scheme = "http"
	req.URL.Host = target
	return http.DefaultTransport.RoundTrip(req)
}
