// Loads daily-bar spreadsheet exports into the ClickHouse store. The symbol
// for each file is its base name; re-running over the same files is
// idempotent.
package main

import (
	"context"
	"flag"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"swing-backtest/services/ingest"
	"swing-backtest/services/store"
)

func main() {
	csvDir := flag.String("csv-dir", "", "Directory of daily-bar CSV exports")
	verbose := flag.Bool("verbose", false, "Debug logging")
	flag.Parse()

	var (
		log *zap.Logger
		err error
	)
	if *verbose {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if *csvDir == "" {
		log.Fatal("-csv-dir is required")
	}

	ctx := context.Background()
	st, err := store.Open(ctx, store.OptionsFromEnv(), log)
	if err != nil {
		log.Fatal("connect", zap.Error(err))
	}
	defer st.Close()
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatal("schema", zap.Error(err))
	}

	matches, err := filepath.Glob(filepath.Join(*csvDir, "*.csv"))
	if err != nil {
		log.Fatal("glob", zap.Error(err))
	}
	if len(matches) == 0 {
		log.Fatal("no csv files found", zap.String("dir", *csvDir))
	}

	installed := 0
	for _, path := range matches {
		symbol := strings.TrimSuffix(filepath.Base(path), ".csv")
		bars, err := ingest.LoadFile(path)
		if err != nil {
			log.Warn("file skipped", zap.String("path", path), zap.Error(err))
			continue
		}
		if err := st.InsertBars(ctx, symbol, bars); err != nil {
			log.Warn("insert failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		installed++
	}
	log.Info("install finished", zap.Int("files", len(matches)), zap.Int("installed", installed))
}
