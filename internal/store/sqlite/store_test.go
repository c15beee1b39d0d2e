package sqlite

import (
	"path/filepath"
	"testing"

	"tradecore/internal/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "candles.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *Store, n int) {
	t.Helper()
	batch := make(model.Series, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, model.Candle{
			Exchange: "binance", Symbol: "BTCUSDT", Period: "1h",
			TS:   1700000000 + int64(i)*3600,
			Open: 100, High: 101, Low: 99, Close: 100 + float64(i), Volume: 5,
		})
	}
	if err := s.WriteCandles(batch); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestStore_RoundTripAscending(t *testing.T) {
	s := openTemp(t)
	seed(t, s, 10)

	got, err := s.ReadRange("binance", "BTCUSDT", "1h", 0, 1800000000)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Fatalf("got %d candles, want 10", len(got))
	}
	if err := got.ValidateAscending(); err != nil {
		t.Fatalf("range read not ascending: %v", err)
	}
}

func TestStore_ReadLast(t *testing.T) {
	s := openTemp(t)
	seed(t, s, 10)

	got, err := s.ReadLast("binance", "BTCUSDT", "1h", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candles, want 3", len(got))
	}
	if err := got.ValidateAscending(); err != nil {
		t.Fatalf("last read not ascending: %v", err)
	}
	if got[2].Close != 109 {
		t.Errorf("newest close = %v, want 109", got[2].Close)
	}
}

func TestStore_UpsertReplaces(t *testing.T) {
	s := openTemp(t)
	seed(t, s, 1)

	// Rewrite the same bucket with a different close
	err := s.WriteCandles(model.Series{{
		Exchange: "binance", Symbol: "BTCUSDT", Period: "1h",
		TS: 1700000000, Open: 100, High: 101, Low: 99, Close: 555, Volume: 5,
	}})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.ReadLast("binance", "BTCUSDT", "1h", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Close != 555 {
		t.Errorf("upsert did not replace: %+v", got)
	}
}

func TestStore_EmptyResult(t *testing.T) {
	s := openTemp(t)
	got, err := s.ReadRange("binance", "ETHUSDT", "1h", 0, 1800000000)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}
