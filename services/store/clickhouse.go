// Package store persists daily bars in ClickHouse so batch runs can pull
// series without re-parsing spreadsheet exports. The table is a
// ReplacingMergeTree keyed by (symbol, day); re-ingesting a file is
// idempotent, the newest version wins.
package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swing-backtest/services/engine"
)

// Options carries connection settings. Fields left empty fall back to the
// CLICKHOUSE_* environment defaults via OptionsFromEnv.
type Options struct {
	Addr     string
	Database string
	Table    string
	User     string
	Password string
}

func env(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// OptionsFromEnv reads connection settings from the environment.
func OptionsFromEnv() Options {
	return Options{
		Addr:     env("CLICKHOUSE_ADDR", "localhost:9000"),
		Database: env("CH_DATABASE", "swing"),
		Table:    env("CH_TABLE", "daily_bars"),
		User:     env("CH_USER", "default"),
		Password: env("CH_PASSWORD", ""),
	}
}

// Store is a thin handle over one ClickHouse connection.
type Store struct {
	conn  clickhouse.Conn
	db    string
	table string
	log   *zap.Logger
}

// Open connects and pings. A nil logger disables logging.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.User,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": uint64(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Store{conn: conn, db: opts.Database, table: opts.Table, log: logger}, nil
}

func (s *Store) Close() error { return s.conn.Close() }

func (s *Store) fqtn() string { return s.db + "." + s.table }

// EnsureSchema creates the database and table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.db)); err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol LowCardinality(String),
			day Date,
			open Decimal(18, 4),
			high Decimal(18, 4),
			low Decimal(18, 4),
			close Decimal(18, 4),
			volume Decimal(20, 0),
			ingested_at DateTime64(3),
			version UInt64
		)
		ENGINE = ReplacingMergeTree(version)
		ORDER BY (symbol, day)
		SETTINGS index_granularity = 8192
	`, s.fqtn())
	if err := s.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// InsertBars writes one symbol's bars in a single batch. All rows of a batch
// share a version so ReplacingMergeTree keeps the newest ingestion intact.
func (s *Store) InsertBars(ctx context.Context, symbol string, bars []engine.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s SETTINGS insert_deduplicate=1", s.fqtn()))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	now := time.Now().UTC()
	ver := uint64(now.UnixNano())
	for _, b := range bars {
		if err := batch.Append(
			symbol,
			b.Date,
			b.Open, b.High, b.Low, b.Close,
			b.Volume,
			now,
			ver,
		); err != nil {
			return fmt.Errorf("batch append %s: %w", b.Date.Format("2006-01-02"), err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("batch send: %w", err)
	}
	s.log.Info("bars stored",
		zap.String("symbol", symbol),
		zap.Int("rows", len(bars)),
		zap.Time("from", bars[0].Date),
		zap.Time("to", bars[len(bars)-1].Date))
	return nil
}

// LoadDaily reads one symbol's bars in [from, to], ascending by day. Zero
// times leave the corresponding bound open.
func (s *Store) LoadDaily(ctx context.Context, symbol string, from, to time.Time) ([]engine.Bar, error) {
	q := fmt.Sprintf(`
		SELECT day, open, high, low, close, volume
		FROM %s FINAL
		WHERE symbol = ?`, s.fqtn())
	args := []any{symbol}
	if !from.IsZero() {
		q += " AND day >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		q += " AND day <= ?"
		args = append(args, to)
	}
	q += " ORDER BY day"

	rows, err := s.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []engine.Bar
	for rows.Next() {
		var (
			day                           time.Time
			open, high, low, clos, volume decimal.Decimal
		)
		if err := rows.Scan(&day, &open, &high, &low, &clos, &volume); err != nil {
			return nil, fmt.Errorf("scan %s: %w", symbol, err)
		}
		bars = append(bars, engine.Bar{
			Date: day.UTC(),
			Open: open, High: high, Low: low, Close: clos,
			Volume: volume,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", symbol, err)
	}
	return bars, nil
}

// Symbols lists every symbol present in the store.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx,
		fmt.Sprintf("SELECT DISTINCT symbol FROM %s ORDER BY symbol", s.fqtn()))
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}
