package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"
	xutil "FinCast/pkg/util"
)

var csvHeader = []string{"timestamp", "open", "high", "low", "close", "volume"}

// CSVSeriesStore keeps one CSV file per symbol under dir.
type CSVSeriesStore struct {
	dir string
	l   *applogger.Logger
}

var _ domrepo.SeriesStore = (*CSVSeriesStore)(nil)

func NewCSVSeriesStore(dir string) *CSVSeriesStore {
	return &CSVSeriesStore{dir: dir}
}

// SetLogger injects a structured logger.
func (s *CSVSeriesStore) SetLogger(l *applogger.Logger) { s.l = l }

// Path returns the file backing symbol.
func (s *CSVSeriesStore) Path(symbol string) string {
	return filepath.Join(s.dir, xutil.NormalizeSymbol(symbol)+".csv")
}

// Save overwrites the stored series for s.Symbol.
func (s *CSVSeriesStore) Save(_ context.Context, series models.Series) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range series.Candles {
		rec := []string{
			strconv.FormatInt(c.Timestamp, 10),
			formatFloat(c.Open),
			formatFloat(c.High),
			formatFloat(c.Low),
			formatFloat(c.Close),
			formatFloat(c.Volume),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	path := s.Path(series.Symbol)
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("save series %s: %w", series.Symbol, err)
	}
	if s.l != nil {
		s.l.Info("series saved",
			applogger.String("symbol", series.Symbol),
			applogger.String("path", path),
			applogger.Int("rows", series.Len()),
		)
	}
	return nil
}

// Load reads the stored series and normalizes its order.
func (s *CSVSeriesStore) Load(_ context.Context, symbol string) (models.Series, error) {
	path := s.Path(symbol)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Series{}, fmt.Errorf("%s: %w", path, models.ErrSeriesNotFound)
		}
		return models.Series{}, fmt.Errorf("open series: %w", err)
	}
	defer f.Close()

	candles, err := ReadCandlesCSV(f)
	if err != nil {
		return models.Series{}, fmt.Errorf("read %s: %w", path, err)
	}
	return models.NewSeries(xutil.NormalizeSymbol(symbol), string(domrepo.DefaultResolution()), candles), nil
}

// ReadCandlesCSV parses either the full OHLCV layout or a two-column
// (time, value) layout such as ds,y / date,close / timestamp,value.
// The time column holds unix seconds or a date.
func ReadCandlesCSV(r io.Reader) ([]models.Candle, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	full := len(header) >= len(csvHeader)
	if full {
		for i, name := range csvHeader {
			if header[i] != name {
				full = false
				break
			}
		}
	}
	if !full && len(header) != 2 {
		return nil, fmt.Errorf("unsupported header %v", header)
	}

	var out []models.Candle
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ts, err := parseTimestamp(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !full {
			v, err := parseFinite(rec[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: value: %w", line, err)
			}
			out = append(out, models.Candle{Timestamp: ts, Open: v, High: v, Low: v, Close: v})
			continue
		}
		vals := make([]float64, 5)
		for i := range vals {
			vals[i], err = parseFinite(rec[i+1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, csvHeader[i+1], err)
			}
		}
		out = append(out, models.Candle{
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	return out, nil
}

// parseFinite rejects NaN and infinities, which strconv accepts.
func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}

func parseTimestamp(s string) (int64, error) {
	t, ok := xutil.ParseTime(strings.TrimSpace(s))
	if !ok {
		return 0, fmt.Errorf("bad timestamp %q", s)
	}
	return t.Unix(), nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
