package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradecore/internal/cache"
	"tradecore/internal/model"
)

const defaultBinanceURL = "https://api.binance.com"

// Binance fetches spot klines from the Binance REST API.
type Binance struct {
	baseURL string
	client  *http.Client
	symbols *cache.TTL[[]string]
}

func NewBinance(baseURL string) *Binance {
	if baseURL == "" {
		baseURL = defaultBinanceURL
	}
	return &Binance{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		symbols: cache.New[[]string](1 * time.Hour),
	}
}

func (b *Binance) Exchange() string { return "binance" }

// Fetch returns up to limit most recent klines, ascending. Binance already
// serves klines oldest-first so no reordering is needed.
func (b *Binance) Fetch(ctx context.Context, symbol, period string, limit int) (model.Series, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("interval", period)
	q.Set("limit", strconv.Itoa(limit))
	return b.klines(ctx, q)
}

// FetchSince returns klines with open time >= sinceTS, ascending.
func (b *Binance) FetchSince(ctx context.Context, symbol, period string, sinceTS int64) (model.Series, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("interval", period)
	q.Set("startTime", strconv.FormatInt(sinceTS*1000, 10))
	q.Set("limit", "1000")
	return b.klines(ctx, q)
}

func (b *Binance) klines(ctx context.Context, q url.Values) (model.Series, error) {
	body, err := b.get(ctx, "/api/v3/klines?"+q.Encode())
	if err != nil {
		return nil, err
	}

	// Each kline is a heterogeneous array:
	// [openTimeMs, "open", "high", "low", "close", "volume", closeTimeMs, ...]
	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("binance: decode klines: %w", err)
	}

	out := make(model.Series, 0, len(raw))
	symbol := strings.ToLower(q.Get("symbol"))
	period := q.Get("interval")
	for _, k := range raw {
		if len(k) < 6 {
			return nil, fmt.Errorf("binance: kline row has %d fields", len(k))
		}
		var tsMs int64
		if err := json.Unmarshal(k[0], &tsMs); err != nil {
			return nil, fmt.Errorf("binance: kline open time: %w", err)
		}
		var f [5]float64 // open, high, low, close, volume
		for i := range f {
			var s string
			if err := json.Unmarshal(k[i+1], &s); err != nil {
				return nil, fmt.Errorf("binance: kline field %d: %w", i+1, err)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("binance: kline field %d: %w", i+1, err)
			}
			f[i] = v
		}
		c, err := model.NewCandle("binance", symbol, period, tsMs/1000, f[0], f[1], f[2], f[3], f[4])
		if err != nil {
			return nil, fmt.Errorf("binance: kline: %w", err)
		}
		out = append(out, c)
	}
	if err := out.ValidateAscending(); err != nil {
		return nil, fmt.Errorf("binance: %w", err)
	}
	return out, nil
}

// Symbols returns all spot symbols currently trading. The exchange info
// payload is large, so results are cached for an hour.
func (b *Binance) Symbols(ctx context.Context) ([]string, error) {
	if syms, ok := b.symbols.Get("spot"); ok {
		return syms, nil
	}

	body, err := b.get(ctx, "/api/v3/exchangeInfo")
	if err != nil {
		return nil, err
	}
	var info struct {
		Symbols []struct {
			Symbol string `json:"symbol"`
			Status string `json:"status"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("binance: decode exchange info: %w", err)
	}
	syms := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status == "TRADING" {
			syms = append(syms, strings.ToLower(s.Symbol))
		}
	}
	b.symbols.Set("spot", syms)
	return syms, nil
}

func (b *Binance) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("binance: build request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance: request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("binance: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance: status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
