// Package model defines the candle series contract shared by every consumer:
// the Candle type and its construction-time validation, the ascending-order
// invariant every computation entry point enforces, and the signal/trade
// types produced by the executor and the backtest simulator.
package model

import (
	"errors"
	"fmt"
	"time"
)

// minCandleTS is the sanity floor for candle timestamps (1990-01-01 UTC).
// Anything earlier is a legacy/garbage timestamp from a misbehaving source.
const minCandleTS int64 = 631152000

// ErrNotAscending reports a series whose first two candles violate the
// declared oldest-first ordering. It is fatal to the call that detected it;
// series are never silently reordered, because that would mask upstream bugs
// in source adapters that return newest-first.
var ErrNotAscending = errors.New("candle series is not in ascending time order")

// ErrInsufficientData reports that a computation has fewer candles than its
// warm-up window requires. Call sites that expect it treat it as "no result
// yet" rather than a failure.
var ErrInsufficientData = errors.New("insufficient candle data")

// Candle is one fixed-duration OHLCV price bar for a single
// exchange/symbol/period. TS is the bucket start time in Unix seconds.
// Candles are validated at construction and treated as immutable afterward.
type Candle struct {
	Exchange string  `json:"exchange"`
	Symbol   string  `json:"symbol"`
	Period   string  `json:"period"` // e.g. "15m", "1h", "1d"
	TS       int64   `json:"ts"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// NewCandle validates and builds a Candle. The period code must carry a known
// unit suffix and the timestamp must be past the sanity floor.
func NewCandle(exchange, symbol, period string, ts int64, open, high, low, close, volume float64) (Candle, error) {
	if _, err := PeriodDuration(period); err != nil {
		return Candle{}, err
	}
	if ts <= minCandleTS {
		return Candle{}, fmt.Errorf("candle ts %d predates 1990-01-01: implausible timestamp", ts)
	}
	return Candle{
		Exchange: exchange,
		Symbol:   symbol,
		Period:   period,
		TS:       ts,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    close,
		Volume:   volume,
	}, nil
}

// Key returns a unique key for this candle's market: "exchange:symbol:period".
func (c *Candle) Key() string {
	return c.Exchange + ":" + c.Symbol + ":" + c.Period
}

// Series is an ordered list of candles for one exchange/symbol/period.
// All computation entry points require ascending (oldest-first) order.
type Series []Candle

// ValidateAscending fails with ErrNotAscending if the first candle's time
// exceeds the second's. Length 0 and 1 series pass trivially.
func (s Series) ValidateAscending() error {
	if len(s) >= 2 && s[0].TS > s[1].TS {
		return fmt.Errorf("%w: s[0].ts=%d > s[1].ts=%d", ErrNotAscending, s[0].TS, s[1].TS)
	}
	return nil
}

// Reversed returns a new series in the opposite order. Boundary adapters for
// venues that return newest-first use it before the series enters the engine.
func (s Series) Reversed() Series {
	out := make(Series, len(s))
	for i, c := range s {
		out[len(s)-1-i] = c
	}
	return out
}

// Closes extracts the close-price array, aligned with the series.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i := range s {
		out[i] = s[i].Close
	}
	return out
}

// PeriodDuration parses a period code like "15m", "4h", "1d" or "1y" into a
// duration. Only minute/hour/day/year unit suffixes are valid.
func PeriodDuration(code string) (time.Duration, error) {
	if len(code) < 2 {
		return 0, fmt.Errorf("invalid period code %q", code)
	}
	unit := code[len(code)-1]
	var n int
	if _, err := fmt.Sscanf(code[:len(code)-1], "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid period code %q", code)
	}
	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'y':
		return time.Duration(n) * 365 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid period code %q: unit must be one of m/h/d/y", code)
	}
}

// PeriodStart aligns ts (Unix seconds) down to the start of its period bucket.
func PeriodStart(ts int64, period string) (int64, error) {
	d, err := PeriodDuration(period)
	if err != nil {
		return 0, err
	}
	sec := int64(d.Seconds())
	return ts - ts%sec, nil
}
