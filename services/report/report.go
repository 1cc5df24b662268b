// Package report turns run summaries into trade-ledger and summary CSV
// files, a cross-instrument rollup, and operator notifications.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swing-backtest/services/engine"
)

const dateFmt = "2006-01-02"

// WriteTrades writes one instrument's trade ledger as CSV.
func WriteTrades(w io.Writer, sum engine.RunSummary) error {
	cw := csv.NewWriter(w)
	header := []string{
		"symbol", "entry_date", "entry_price", "entry_reason",
		"exit_date", "exit_price", "exit_reason",
		"quantity", "pnl", "return_pct", "holding_days",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range sum.Trades {
		rec := []string{
			sum.Symbol,
			t.EntryDate.Format(dateFmt),
			t.EntryPrice.String(),
			t.EntryReason,
			t.ExitDate.Format(dateFmt),
			t.ExitPrice.String(),
			t.ExitReason,
			strconv.FormatInt(t.Quantity, 10),
			t.PnL.String(),
			strconv.FormatFloat(t.ReturnPct, 'f', 4, 64),
			strconv.Itoa(t.HoldingDays),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaries writes the per-instrument summary table as CSV.
func WriteSummaries(w io.Writer, sums []engine.RunSummary) error {
	cw := csv.NewWriter(w)
	header := []string{
		"symbol", "trades", "win_rate_pct", "final_equity", "total_return_pct",
		"last_buy_signal", "last_sell_signal",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range sums {
		rec := []string{
			s.Symbol,
			strconv.Itoa(s.NumTrades),
			strconv.FormatFloat(s.WinRatePct, 'f', 2, 64),
			s.FinalEquity.String(),
			strconv.FormatFloat(s.TotalReturnPct, 'f', 4, 64),
			s.LastSignal.Buy,
			s.LastSignal.Sell,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFiles writes trades_<symbol>.csv per instrument plus summary.csv
// under dir, creating it when missing.
func WriteFiles(dir string, sums []engine.RunSummary) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	for _, s := range sums {
		path := filepath.Join(dir, "trades_"+s.Symbol+".csv")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		err = WriteTrades(f, s)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	path := filepath.Join(dir, "summary.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	err = WriteSummaries(f, sums)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Rollup aggregates one batch across instruments.
type Rollup struct {
	Instruments    int
	TotalTrades    int
	TotalEquity    decimal.Decimal
	AvgReturnPct   float64
	WithSignal     int
	WorstReturnPct float64
	BestReturnPct  float64
}

// BuildRollup reduces the batch. Return extremes are zero on an empty batch.
func BuildRollup(sums []engine.RunSummary) Rollup {
	r := Rollup{Instruments: len(sums), TotalEquity: decimal.Zero}
	if len(sums) == 0 {
		return r
	}
	r.WorstReturnPct = sums[0].TotalReturnPct
	r.BestReturnPct = sums[0].TotalReturnPct
	total := 0.0
	for _, s := range sums {
		r.TotalTrades += s.NumTrades
		r.TotalEquity = r.TotalEquity.Add(s.FinalEquity)
		total += s.TotalReturnPct
		if s.LastSignal.Actionable() {
			r.WithSignal++
		}
		if s.TotalReturnPct < r.WorstReturnPct {
			r.WorstReturnPct = s.TotalReturnPct
		}
		if s.TotalReturnPct > r.BestReturnPct {
			r.BestReturnPct = s.TotalReturnPct
		}
	}
	r.AvgReturnPct = total / float64(len(sums))
	return r
}

// FormatMessage renders the operator notification for one batch. Instruments
// without a live signal on either side are left out; an all-quiet batch
// yields an empty string and nothing should be sent.
func FormatMessage(sums []engine.RunSummary) string {
	var b strings.Builder
	for _, s := range sums {
		if !s.LastSignal.Actionable() {
			continue
		}
		fmt.Fprintf(&b, "%s:", s.Symbol)
		if s.LastSignal.Buy != "" {
			fmt.Fprintf(&b, " BUY (%s)", s.LastSignal.Buy)
		}
		if s.LastSignal.Sell != "" {
			fmt.Fprintf(&b, " SELL (%s)", s.LastSignal.Sell)
		}
		fmt.Fprintf(&b, " | trades %d, win %.1f%%, return %.2f%%\n",
			s.NumTrades, s.WinRatePct, s.TotalReturnPct)
	}
	return b.String()
}

// Notifier delivers a batch message to an operator channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// TelegramNotifier posts messages through the Telegram bot API.
type TelegramNotifier struct {
	Token  string
	ChatID string
	Client *http.Client
	Log    *zap.Logger
}

func NewTelegramNotifier(token, chatID string, logger *zap.Logger) *TelegramNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramNotifier{
		Token:  token,
		ChatID: chatID,
		Client: &http.Client{Timeout: 30 * time.Second},
		Log:    logger,
	}
}

// Notify sends text to the configured chat. Empty text is a no-op.
func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.Token)
	form := url.Values{"chat_id": {n.ChatID}, "text": {text}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send: status %d", resp.StatusCode)
	}
	n.Log.Info("notification sent", zap.Int("bytes", len(text)))
	return nil
}
