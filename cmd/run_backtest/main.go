// Batch backtest runner. Loads daily-bar series from a CSV export directory
// or from ClickHouse, runs each instrument independently, writes trade
// ledgers and a summary table, prints the batch rollup and optionally pushes
// the live-signal digest to Telegram.
package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swing-backtest/services/engine"
	"swing-backtest/services/ingest"
	"swing-backtest/services/report"
	"swing-backtest/services/store"
)

func main() {
	csvDir := flag.String("csv-dir", "", "Directory of daily-bar CSV exports (symbol taken from filename)")
	symbols := flag.String("symbols", "", "Comma-separated symbols to pull from ClickHouse instead of CSV files")
	from := flag.String("from", "", "Start date YYYY-MM-DD for ClickHouse loads (empty = open)")
	to := flag.String("to", "", "End date YYYY-MM-DD for ClickHouse loads (empty = open)")
	outDir := flag.String("out", "./reports", "Report output directory")
	window := flag.Int("window", 20, "Signal confirmation window in calendar days")
	capital := flag.String("capital", "1000000", "Initial capital per instrument")
	showPending := flag.Bool("pending", false, "Replay the streaming tracker and log any signal still open at the end")
	tgToken := flag.String("telegram-token", "", "Telegram bot token (empty disables notifications)")
	tgChat := flag.String("telegram-chat", "", "Telegram chat id")
	verbose := flag.Bool("verbose", false, "Debug logging")
	flag.Parse()

	log := buildLogger(*verbose)
	defer log.Sync()

	cfg := engine.DefaultConfig()
	cfg.WindowDays = *window
	capital0, err := decimal.NewFromString(*capital)
	if err != nil || !capital0.IsPositive() {
		log.Fatal("invalid -capital", zap.String("value", *capital))
	}
	cfg.InitialCapital = capital0

	jobID := uuid.NewString()
	log = log.With(zap.String("job_id", jobID))
	ctx := context.Background()

	series, err := loadSeries(ctx, *csvDir, *symbols, *from, *to, log)
	if err != nil {
		log.Fatal("load series", zap.Error(err))
	}
	if len(series) == 0 {
		log.Fatal("no instruments to run; pass -csv-dir or -symbols")
	}

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	var sums []engine.RunSummary
	for _, name := range names {
		sim, err := engine.NewSimulator(name, series[name], cfg, log)
		if err != nil {
			// One bad instrument never sinks the batch.
			log.Warn("instrument skipped", zap.String("symbol", name), zap.Error(err))
			continue
		}
		sum := sim.Run()
		sums = append(sums, sum)
		log.Info("run complete",
			zap.String("symbol", name),
			zap.Int("trades", sum.NumTrades),
			zap.Float64("return_pct", sum.TotalReturnPct))

		if *showPending {
			logPending(name, series[name], sim.Frame(), cfg, log)
		}
	}
	if len(sums) == 0 {
		log.Fatal("every instrument failed preconditions")
	}

	dir := filepath.Join(*outDir, jobID)
	if err := report.WriteFiles(dir, sums); err != nil {
		log.Fatal("write reports", zap.Error(err))
	}

	r := report.BuildRollup(sums)
	fmt.Printf("job %s: %d instruments, %d trades, avg return %.2f%%, total equity %s, %d with live signal\n",
		jobID, r.Instruments, r.TotalTrades, r.AvgReturnPct, r.TotalEquity.StringFixed(0), r.WithSignal)
	fmt.Printf("reports written to %s\n", dir)

	if *tgToken != "" && *tgChat != "" {
		msg := report.FormatMessage(sums)
		if msg == "" {
			log.Info("no live signals; notification skipped")
			return
		}
		n := report.NewTelegramNotifier(*tgToken, *tgChat, log)
		if err := n.Notify(ctx, msg); err != nil {
			log.Error("notify", zap.Error(err))
		}
	}
}

func buildLogger(verbose bool) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if verbose {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return log
}

// loadSeries resolves the instrument set from either a CSV directory or the
// ClickHouse store.
func loadSeries(ctx context.Context, csvDir, symbols, from, to string, log *zap.Logger) (map[string][]engine.Bar, error) {
	out := make(map[string][]engine.Bar)

	if csvDir != "" {
		matches, err := filepath.Glob(filepath.Join(csvDir, "*.csv"))
		if err != nil {
			return nil, err
		}
		for _, path := range matches {
			name := strings.TrimSuffix(filepath.Base(path), ".csv")
			bars, err := ingest.LoadFile(path)
			if err != nil {
				log.Warn("file skipped", zap.String("path", path), zap.Error(err))
				continue
			}
			out[name] = bars
		}
		return out, nil
	}

	if symbols == "" {
		return out, nil
	}
	fromT, err := parseDay(from)
	if err != nil {
		return nil, fmt.Errorf("parse -from: %w", err)
	}
	toT, err := parseDay(to)
	if err != nil {
		return nil, fmt.Errorf("parse -to: %w", err)
	}
	st, err := store.Open(ctx, store.OptionsFromEnv(), log)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	for _, sym := range strings.Split(symbols, ",") {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		bars, err := st.LoadDaily(ctx, sym, fromT, toT)
		if err != nil {
			log.Warn("symbol skipped", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		out[sym] = bars
	}
	return out, nil
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

// logPending replays the streaming tracker over the finished series and
// reports a signal still waiting for confirmation on the last bar.
func logPending(symbol string, bars []engine.Bar, f *engine.Frame, cfg engine.Config, log *zap.Logger) {
	tr := engine.NewSignalTracker(bars, f, cfg, log)
	for i := 1; i < len(bars); i++ {
		tr.OnBar(i)
	}
	if p := tr.Pending(); p != nil {
		log.Info("signal pending at period end",
			zap.String("symbol", symbol),
			zap.String("kind", p.Kind.String()),
			zap.String("origin", p.Origin),
			zap.Int("bars_remaining", p.Remaining))
	}
}
