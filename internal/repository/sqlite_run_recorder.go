package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"

	_ "modernc.org/sqlite"
)

// RunRecord is one row of the prediction audit trail.
type RunRecord struct {
	ID         int64
	RecordedAt time.Time
	Symbol     string
	Status     string
	Stage      string
	Error      string
	Accuracy   float64
	MSE        float64
	MAE        float64
	Prediction float64
	DurationMS int64
}

// SQLiteRunRecorder persists every prediction cycle to SQLite.
type SQLiteRunRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

var _ domrepo.RunRecorder = (*SQLiteRunRecorder)(nil)

// NewSQLiteRunRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRunRecorder(dbPath string) (*SQLiteRunRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRunRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRunRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS prediction_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			symbol      TEXT NOT NULL,
			status      TEXT NOT NULL,
			stage       TEXT,
			error       TEXT,
			accuracy    REAL,
			mse         REAL,
			mae         REAL,
			mape        REAL,
			prediction  REAL,
			last_close  REAL,
			train_loss  REAL,
			epochs      INTEGER,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol_ts ON prediction_runs(symbol, timestamp)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores a successful result, or the failure stage and message
// when runErr is set (r may then be nil or carry only the symbol).
func (r *SQLiteRunRecorder) RecordRun(ctx context.Context, res *models.PredictionResult, runErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res == nil {
		res = &models.PredictionResult{}
	}
	status, stage, msg := "ok", "", ""
	if runErr != nil {
		status = "error"
		stage = string(models.StageOf(runErr))
		msg = runErr.Error()
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO prediction_runs
		(timestamp, symbol, status, stage, error, accuracy, mse, mae, mape,
		 prediction, last_close, train_loss, epochs, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().Unix(), res.Symbol, status, stage, msg,
		res.Accuracy, res.MSE, res.MAE, res.MAPE,
		res.Prediction, res.LastClose, res.TrainLoss, res.Epochs, res.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert prediction_run: %w", err)
	}
	return nil
}

// RecentRuns returns the newest runs for symbol, newest first.
func (r *SQLiteRunRecorder) RecentRuns(ctx context.Context, symbol string, limit int) ([]RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, timestamp, symbol, status, stage, error,
		accuracy, mse, mae, prediction, duration_ms
		FROM prediction_runs WHERE symbol = ? ORDER BY id DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query prediction_runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec RunRecord
			ts  int64
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.Symbol, &rec.Status, &rec.Stage, &rec.Error,
			&rec.Accuracy, &rec.MSE, &rec.MAE, &rec.Prediction, &rec.DurationMS); err != nil {
			return nil, fmt.Errorf("scan prediction_run: %w", err)
		}
		rec.RecordedAt = time.Unix(ts, 0).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRunRecorder) Close() error {
	return r.db.Close()
}
