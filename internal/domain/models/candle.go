package models

import (
	"sort"
	"time"
)

// Candle represents one daily OHLCV record. Timestamp is unix seconds.
type Candle struct {
	Timestamp int64   `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

// Time returns the candle bucket as UTC time.
func (c Candle) Time() time.Time { return time.Unix(c.Timestamp, 0).UTC() }

// Series is a time-ordered run of candles for one symbol.
// Invariant: ascending by Timestamp, no duplicate timestamps.
type Series struct {
	Symbol     string
	Resolution string
	Candles    []Candle
}

// NewSeries copies candles, sorts them ascending and drops duplicate
// timestamps (the last occurrence wins). Applying it to an already
// normalized slice is a no-op.
func NewSeries(symbol, resolution string, candles []Candle) Series {
	out := make([]Candle, len(candles))
	copy(out, candles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })

	dedup := out[:0]
	for _, c := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Timestamp == c.Timestamp {
			dedup[n-1] = c
			continue
		}
		dedup = append(dedup, c)
	}
	return Series{Symbol: symbol, Resolution: resolution, Candles: dedup}
}

// Len returns the number of candles.
func (s Series) Len() int { return len(s.Candles) }

// IsEmpty reports whether the series holds no candles.
func (s Series) IsEmpty() bool { return len(s.Candles) == 0 }

// Closes returns the close prices in order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Slice returns the sub-series [from, to) sharing the same symbol.
func (s Series) Slice(from, to int) Series {
	return Series{Symbol: s.Symbol, Resolution: s.Resolution, Candles: s.Candles[from:to]}
}

// Last returns the most recent candle and false for an empty series.
func (s Series) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}
