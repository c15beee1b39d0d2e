package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBinanceFetchAscending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %s", got)
		}
		w.Write([]byte(`[
			[1700000000000, "100.0", "101.0", "99.0", "100.5", "12.5", 1700000899999],
			[1700000900000, "100.5", "102.0", "100.0", "101.5", "8.0", 1700001799999]
		]`))
	}))
	defer srv.Close()

	b := NewBinance(srv.URL)
	s, err := b.Fetch(context.Background(), "btcusdt", "15m", 2)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(s) != 2 {
		t.Fatalf("got %d candles, want 2", len(s))
	}
	if s[0].TS != 1700000000 || s[1].TS != 1700000900 {
		t.Errorf("timestamps = %d, %d", s[0].TS, s[1].TS)
	}
	if s[0].Exchange != "binance" || s[0].Symbol != "btcusdt" || s[0].Period != "15m" {
		t.Errorf("identity = %s:%s:%s", s[0].Exchange, s[0].Symbol, s[0].Period)
	}
	if s[1].Close != 101.5 || s[1].Volume != 8.0 {
		t.Errorf("candle values = %+v", s[1])
	}
}

func TestBinanceFetchRejectsImplausibleTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			[0, "100.0", "101.0", "99.0", "100.5", "12.5", 899999]
		]`))
	}))
	defer srv.Close()

	b := NewBinance(srv.URL)
	if _, err := b.Fetch(context.Background(), "btcusdt", "15m", 1); err == nil {
		t.Fatal("a zero open time must not enter a series")
	}
}

func TestBinanceFetchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	b := NewBinance(srv.URL)
	if _, err := b.Fetch(context.Background(), "nope", "15m", 10); err == nil {
		t.Fatal("expected error on 400 response")
	}
}

func TestBinanceSymbolsCached(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"symbols":[
			{"symbol":"BTCUSDT","status":"TRADING"},
			{"symbol":"OLDCOIN","status":"BREAK"}
		]}`))
	}))
	defer srv.Close()

	b := NewBinance(srv.URL)
	for i := 0; i < 3; i++ {
		syms, err := b.Symbols(context.Background())
		if err != nil {
			t.Fatalf("Symbols: %v", err)
		}
		if len(syms) != 1 || syms[0] != "btcusdt" {
			t.Fatalf("symbols = %v", syms)
		}
	}
	if calls != 1 {
		t.Errorf("exchange info fetched %d times, want 1", calls)
	}
}

func TestOKXFetchReversesToAscending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("instId"); got != "BTC-USDT" {
			t.Errorf("instId = %s", got)
		}
		if got := r.URL.Query().Get("bar"); got != "1H" {
			t.Errorf("bar = %s", got)
		}
		// Newest first, as OKX serves them.
		w.Write([]byte(`{"code":"0","msg":"","data":[
			["1700003600000","101.5","102.0","100.0","101.0","9.0","0","0","1"],
			["1700000000000","100.0","101.0","99.0","101.5","12.0","0","0","1"]
		]}`))
	}))
	defer srv.Close()

	o := NewOKX(srv.URL)
	s, err := o.Fetch(context.Background(), "btcusdt", "1h", 2)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(s) != 2 {
		t.Fatalf("got %d candles, want 2", len(s))
	}
	if s[0].TS != 1700000000 || s[1].TS != 1700003600 {
		t.Errorf("not ascending after reverse: %d, %d", s[0].TS, s[1].TS)
	}
}

func TestOKXFetchRejectsImplausibleTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"0","msg":"","data":[
			["0","100.0","101.0","99.0","101.5","12.0","0","0","1"]
		]}`))
	}))
	defer srv.Close()

	o := NewOKX(srv.URL)
	if _, err := o.Fetch(context.Background(), "btcusdt", "1h", 1); err == nil {
		t.Fatal("a zero candle timestamp must not enter a series")
	}
}

func TestOKXAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
	}))
	defer srv.Close()

	o := NewOKX(srv.URL)
	if _, err := o.Fetch(context.Background(), "nope", "1h", 10); err == nil {
		t.Fatal("expected error on non-zero code")
	}
}

func TestOKXSymbolMapping(t *testing.T) {
	cases := map[string]string{
		"btcusdt":  "BTC-USDT",
		"ethbtc":   "ETH-BTC",
		"BTC-USDT": "BTC-USDT",
	}
	for in, want := range cases {
		if got := okxInstID(in); got != want {
			t.Errorf("okxInstID(%q) = %q, want %q", in, got, want)
		}
	}
	if got := okxBar("15m"); got != "15m" {
		t.Errorf("okxBar(15m) = %q", got)
	}
	if got := okxBar("4h"); got != "4H" {
		t.Errorf("okxBar(4h) = %q", got)
	}
	if got := okxBar("1d"); got != "1D" {
		t.Errorf("okxBar(1d) = %q", got)
	}
}

func TestNewSource(t *testing.T) {
	s, err := NewSource("okx", "")
	if err != nil {
		t.Fatalf("NewSource okx: %v", err)
	}
	if s.Exchange() != "okx" {
		t.Errorf("exchange = %s", s.Exchange())
	}
	if _, err := NewSource("kraken", ""); err == nil {
		t.Error("expected error for unknown exchange")
	}
}

func TestPeriodClockLastClosed(t *testing.T) {
	clk := NewPeriodClock(0)
	clk.now = func() time.Time { return time.Unix(1700000950, 0) } // mid 15m bucket

	last, err := clk.LastClosed("15m")
	if err != nil {
		t.Fatalf("LastClosed: %v", err)
	}
	cur, err := clk.CurrentBucket("15m")
	if err != nil {
		t.Fatalf("CurrentBucket: %v", err)
	}
	if cur-last != 900 {
		t.Errorf("last closed %d not one bucket before current %d", last, cur)
	}
	if cur%900 != 0 {
		t.Errorf("current bucket %d not aligned to 15m", cur)
	}
}

func TestPeriodClockBadPeriod(t *testing.T) {
	clk := NewPeriodClock(0)
	if _, err := clk.LastClosed("15x"); err == nil {
		t.Error("expected error for bad period code")
	}
}
