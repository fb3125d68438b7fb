package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	pkgch "FinCast/pkg/clickhouse"
	applogger "FinCast/pkg/logger"
	xutil "FinCast/pkg/util"
)

// CandleSchema creates the daily candle table.
var CandleSchema = []string{
	`CREATE TABLE IF NOT EXISTS daily_candles (
		symbol     LowCardinality(String),
		resolution LowCardinality(String),
		ts         DateTime('UTC'),
		open       Float64,
		high       Float64,
		low        Float64,
		close      Float64,
		volume     Float64,
		updated_at DateTime64(3, 'UTC') DEFAULT now64(3)
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY (symbol, ts)`,
}

// CHSeriesStore implements SeriesStore backed by ClickHouse.
type CHSeriesStore struct {
	db  *sql.DB
	l   *applogger.Logger
	now func() time.Time
}

var _ domrepo.SeriesStore = (*CHSeriesStore)(nil)

func NewCHSeriesStore(ch *pkgch.Client) *CHSeriesStore {
	return newCHSeriesStore(ch.DB())
}

func newCHSeriesStore(db *sql.DB) *CHSeriesStore {
	return &CHSeriesStore{db: db, now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHSeriesStore) SetLogger(l *applogger.Logger) { s.l = l }

// Save replaces every stored row of the symbol with the given series. The new
// rows are written under a fresh version first and older versions are deleted
// afterwards, so a concurrent Load sees either series but never an empty one.
func (s *CHSeriesStore) Save(ctx context.Context, series models.Series) error {
	start := time.Now()
	symbol := xutil.NormalizeSymbol(series.Symbol)
	version := s.now().UTC().Truncate(time.Millisecond)

	if !series.IsEmpty() {
		if err := s.insert(ctx, symbol, version, series); err != nil {
			return err
		}
	}
	if _, err := s.db.ExecContext(ctx,
		`ALTER TABLE daily_candles DELETE WHERE symbol = ? AND updated_at < ? SETTINGS mutations_sync = 1`,
		symbol, version); err != nil {
		s.logErr("clickhouse delete_stale error", symbol, err)
		return fmt.Errorf("delete stale rows: %w", err)
	}

	if s.l != nil {
		s.l.Info("clickhouse save_series ok",
			applogger.String("symbol", symbol),
			applogger.Int("rows", series.Len()),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

// Load reads the deduplicated series in ascending time order.
func (s *CHSeriesStore) Load(ctx context.Context, symbol string) (models.Series, error) {
	symbol = xutil.NormalizeSymbol(symbol)
	rows, err := s.db.QueryContext(ctx, `
		SELECT resolution, ts, open, high, low, close, volume
		FROM daily_candles FINAL
		WHERE symbol = ?
		ORDER BY ts ASC`, symbol)
	if err != nil {
		s.logErr("clickhouse load_series query error", symbol, err)
		return models.Series{}, fmt.Errorf("load series: %w", err)
	}
	defer rows.Close()

	res := string(domrepo.DefaultResolution())
	out := make([]models.Candle, 0, 512)
	for rows.Next() {
		var (
			c  models.Candle
			ts time.Time
		)
		if err := rows.Scan(&res, &ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return models.Series{}, fmt.Errorf("scan candle: %w", err)
		}
		c.Timestamp = ts.Unix()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return models.Series{}, fmt.Errorf("rows: %w", err)
	}
	if len(out) == 0 {
		return models.Series{}, fmt.Errorf("%s: %w", symbol, models.ErrSeriesNotFound)
	}
	return models.NewSeries(symbol, res, out), nil
}

func (s *CHSeriesStore) insert(ctx context.Context, symbol string, version time.Time, series models.Series) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO daily_candles (symbol, resolution, ts, open, high, low, close, volume, updated_at)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, c := range series.Candles {
		if _, err := stmt.ExecContext(ctx, symbol, series.Resolution, c.Time(), c.Open, c.High, c.Low, c.Close, c.Volume, version); err != nil {
			_ = tx.Rollback()
			s.logErr("clickhouse append error", symbol, err)
			return fmt.Errorf("append candle: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		s.logErr("clickhouse commit error", symbol, err)
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *CHSeriesStore) logErr(msg, symbol string, err error) {
	if s.l != nil {
		s.l.Error(msg, applogger.String("symbol", symbol), applogger.Error(err))
	}
}
