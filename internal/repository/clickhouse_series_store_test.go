package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"FinCast/internal/domain/models"
)

// recordingDriver is a database/sql driver that records every statement and
// answers queries with canned rows.
type recordingDriver struct {
	mu    sync.Mutex
	execs []recordedExec
	rows  [][]driver.Value
}

type recordedExec struct {
	query string
	args  []driver.Value
}

var (
	registerOnce sync.Once
	driversMu    sync.Mutex
	drivers      = map[string]*recordingDriver{}
)

type recordingDrivers struct{}

func (recordingDrivers) Open(name string) (driver.Conn, error) {
	driversMu.Lock()
	defer driversMu.Unlock()
	d, ok := drivers[name]
	if !ok {
		return nil, errors.New("unknown dsn " + name)
	}
	return &recordingConn{d: d}, nil
}

func openRecording(t *testing.T) (*sql.DB, *recordingDriver) {
	t.Helper()
	registerOnce.Do(func() { sql.Register("chrecord", recordingDrivers{}) })
	d := &recordingDriver{}
	driversMu.Lock()
	drivers[t.Name()] = d
	driversMu.Unlock()
	db, err := sql.Open("chrecord", t.Name())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, d
}

func (d *recordingDriver) recorded() []recordedExec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]recordedExec(nil), d.execs...)
}

type recordingConn struct{ d *recordingDriver }

func (c *recordingConn) Prepare(query string) (driver.Stmt, error) {
	return &recordingStmt{d: c.d, query: query}, nil
}
func (c *recordingConn) Close() error              { return nil }
func (c *recordingConn) Begin() (driver.Tx, error) { return recordingTx{}, nil }

type recordingTx struct{}

func (recordingTx) Commit() error   { return nil }
func (recordingTx) Rollback() error { return nil }

type recordingStmt struct {
	d     *recordingDriver
	query string
}

func (s *recordingStmt) Close() error  { return nil }
func (s *recordingStmt) NumInput() int { return -1 }

func (s *recordingStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.execs = append(s.d.execs, recordedExec{query: s.query, args: append([]driver.Value(nil), args...)})
	return driver.RowsAffected(1), nil
}

func (s *recordingStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	return &cannedRows{rows: s.d.rows}, nil
}

type cannedRows struct {
	rows [][]driver.Value
	i    int
}

func (r *cannedRows) Columns() []string {
	return []string{"resolution", "ts", "open", "high", "low", "close", "volume"}
}
func (r *cannedRows) Close() error { return nil }

func (r *cannedRows) Next(dest []driver.Value) error {
	if r.i >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.i])
	r.i++
	return nil
}

func sameTime(v driver.Value, want time.Time) bool {
	ts, ok := v.(time.Time)
	return ok && ts.Equal(want)
}

func TestCHSeriesStoreInsertsBeforeDeletingOlderRows(t *testing.T) {
	db, d := openRecording(t)
	s := newCHSeriesStore(db)
	version := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	s.now = func() time.Time { return version }

	series := models.NewSeries("aapl", "D", []models.Candle{
		{Timestamp: 1704153600, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Timestamp: 1704240000, Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 20},
	})
	if err := s.Save(context.Background(), series); err != nil {
		t.Fatalf("save: %v", err)
	}

	execs := d.recorded()
	if len(execs) != 3 {
		t.Fatalf("expected 2 inserts and 1 delete, got %d statements", len(execs))
	}
	want := version.Truncate(time.Millisecond)
	for _, e := range execs[:2] {
		if !strings.HasPrefix(e.query, "INSERT INTO daily_candles") {
			t.Fatalf("rows must be written first, got %q", e.query)
		}
		if e.args[0] != "AAPL" || !sameTime(e.args[len(e.args)-1], want) {
			t.Fatalf("insert args %v", e.args)
		}
	}
	del := execs[2]
	if !strings.HasPrefix(del.query, "ALTER TABLE daily_candles DELETE") || !strings.Contains(del.query, "updated_at < ?") {
		t.Fatalf("stale rows must be deleted last, got %q", del.query)
	}
	if len(del.args) != 2 || del.args[0] != "AAPL" || !sameTime(del.args[1], want) {
		t.Fatalf("delete args %v", del.args)
	}
}

func TestCHSeriesStoreSaveEmptyClearsSymbol(t *testing.T) {
	db, d := openRecording(t)
	s := newCHSeriesStore(db)

	if err := s.Save(context.Background(), models.Series{Symbol: "msft"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	execs := d.recorded()
	if len(execs) != 1 || !strings.HasPrefix(execs[0].query, "ALTER TABLE daily_candles DELETE") {
		t.Fatalf("expected a single delete, got %+v", execs)
	}
}

func TestCHSeriesStoreLoad(t *testing.T) {
	db, d := openRecording(t)
	s := newCHSeriesStore(db)

	if _, err := s.Load(context.Background(), "aapl"); !errors.Is(err, models.ErrSeriesNotFound) {
		t.Fatalf("expected ErrSeriesNotFound, got %v", err)
	}

	d.rows = [][]driver.Value{
		{"D", time.Unix(1704153600, 0).UTC(), 1.0, 2.0, 0.5, 1.5, 10.0},
		{"D", time.Unix(1704240000, 0).UTC(), 1.5, 2.5, 1.0, 2.0, 20.0},
	}
	got, err := s.Load(context.Background(), " aapl ")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Symbol != "AAPL" || got.Resolution != "D" || got.Len() != 2 {
		t.Fatalf("unexpected series %+v", got)
	}
	if got.Candles[0].Timestamp != 1704153600 || got.Candles[1].Close != 2.0 || got.Candles[1].Volume != 20.0 {
		t.Fatalf("unexpected candles %+v", got.Candles)
	}
}
