package model

import (
	"errors"
	"testing"
	"time"
)

func TestNewCandle_Valid(t *testing.T) {
	c, err := NewCandle("binance", "BTCUSDT", "15m", 1700000000, 100, 110, 90, 105, 12.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Key() != "binance:BTCUSDT:15m" {
		t.Errorf("unexpected key: %s", c.Key())
	}
}

func TestNewCandle_BadPeriodUnit(t *testing.T) {
	for _, code := range []string{"15s", "1w", "x", "", "m", "0m", "-5h"} {
		if _, err := NewCandle("binance", "BTCUSDT", code, 1700000000, 1, 1, 1, 1, 1); err == nil {
			t.Errorf("period %q: expected error, got none", code)
		}
	}
}

func TestNewCandle_ImplausibleTimestamp(t *testing.T) {
	// 1985-01-01 — before the sanity floor
	if _, err := NewCandle("binance", "BTCUSDT", "1h", 473385600, 1, 1, 1, 1, 1); err == nil {
		t.Fatal("expected error for pre-1990 timestamp")
	}
}

func TestSeries_ValidateAscending(t *testing.T) {
	asc := Series{{TS: 100}, {TS: 200}, {TS: 300}}
	if err := asc.ValidateAscending(); err != nil {
		t.Fatalf("ascending series rejected: %v", err)
	}

	desc := Series{{TS: 300}, {TS: 200}, {TS: 100}}
	err := desc.ValidateAscending()
	if !errors.Is(err, ErrNotAscending) {
		t.Fatalf("expected ErrNotAscending, got %v", err)
	}

	// Length 0 and 1 pass trivially
	if err := (Series{}).ValidateAscending(); err != nil {
		t.Errorf("empty series rejected: %v", err)
	}
	if err := (Series{{TS: 100}}).ValidateAscending(); err != nil {
		t.Errorf("single-candle series rejected: %v", err)
	}
}

func TestSeries_Reversed(t *testing.T) {
	s := Series{{TS: 300}, {TS: 200}, {TS: 100}}
	r := s.Reversed()
	if err := r.ValidateAscending(); err != nil {
		t.Fatalf("reversed series not ascending: %v", err)
	}
	if r[0].TS != 100 || r[2].TS != 300 {
		t.Errorf("unexpected order: %+v", r)
	}
	// Original untouched
	if s[0].TS != 300 {
		t.Errorf("original series mutated: %+v", s)
	}
}

func TestPeriodDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":  time.Minute,
		"15m": 15 * time.Minute,
		"4h":  4 * time.Hour,
		"1d":  24 * time.Hour,
		"1y":  365 * 24 * time.Hour,
	}
	for code, want := range cases {
		got, err := PeriodDuration(code)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", code, err)
			continue
		}
		if got != want {
			t.Errorf("%s: got %v, want %v", code, got, want)
		}
	}
}

func TestPeriodStart(t *testing.T) {
	// 1700000000 = 2023-11-14 22:13:20 UTC; 15m bucket starts at 22:00..22:15 boundary
	start, err := PeriodStart(1700000000, "15m")
	if err != nil {
		t.Fatal(err)
	}
	if start%900 != 0 || start > 1700000000 || 1700000000-start >= 900 {
		t.Errorf("bad bucket start %d", start)
	}
}
