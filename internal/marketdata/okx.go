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

	"tradecore/internal/model"
)

const defaultOKXURL = "https://www.okx.com"

// OKX fetches candles from the OKX REST API. OKX serves candles
// newest-first, so rows are reversed at the boundary before anything
// downstream sees them.
type OKX struct {
	baseURL string
	client  *http.Client
}

func NewOKX(baseURL string) *OKX {
	if baseURL == "" {
		baseURL = defaultOKXURL
	}
	return &OKX{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (o *OKX) Exchange() string { return "okx" }

func (o *OKX) Fetch(ctx context.Context, symbol, period string, limit int) (model.Series, error) {
	q := url.Values{}
	q.Set("instId", okxInstID(symbol))
	q.Set("bar", okxBar(period))
	q.Set("limit", strconv.Itoa(limit))
	return o.candles(ctx, symbol, period, q)
}

func (o *OKX) FetchSince(ctx context.Context, symbol, period string, sinceTS int64) (model.Series, error) {
	q := url.Values{}
	q.Set("instId", okxInstID(symbol))
	q.Set("bar", okxBar(period))
	// "before" is exclusive and in milliseconds: rows newer than it.
	q.Set("before", strconv.FormatInt((sinceTS-1)*1000, 10))
	q.Set("limit", "300")
	return o.candles(ctx, symbol, period, q)
}

func (o *OKX) candles(ctx context.Context, symbol, period string, q url.Values) (model.Series, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		o.baseURL+"/api/v5/market/candles?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("okx: build request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("okx: request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("okx: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("okx: status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var env struct {
		Code string     `json:"code"`
		Msg  string     `json:"msg"`
		Data [][]string `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("okx: decode: %w", err)
	}
	if env.Code != "0" {
		return nil, fmt.Errorf("okx: api error %s: %s", env.Code, env.Msg)
	}

	out := make(model.Series, 0, len(env.Data))
	for _, row := range env.Data {
		// [tsMs, open, high, low, close, vol, ...]
		if len(row) < 6 {
			return nil, fmt.Errorf("okx: candle row has %d fields", len(row))
		}
		tsMs, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("okx: candle ts: %w", err)
		}
		var f [5]float64 // open, high, low, close, volume
		for i := range f {
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("okx: candle field %d: %w", i+1, err)
			}
			f[i] = v
		}
		c, err := model.NewCandle("okx", strings.ToLower(symbol), period, tsMs/1000, f[0], f[1], f[2], f[3], f[4])
		if err != nil {
			return nil, fmt.Errorf("okx: candle: %w", err)
		}
		out = append(out, c)
	}

	// Newest-first on the wire; flip once here.
	out = out.Reversed()
	if err := out.ValidateAscending(); err != nil {
		return nil, fmt.Errorf("okx: %w", err)
	}
	return out, nil
}

// okxInstID maps "btcusdt" to OKX's "BTC-USDT" form. Symbols already
// containing a dash pass through uppercased.
func okxInstID(symbol string) string {
	s := strings.ToUpper(symbol)
	if strings.Contains(s, "-") {
		return s
	}
	for _, quote := range []string{"USDT", "USDC", "BTC", "ETH", "USD"} {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s[:len(s)-len(quote)] + "-" + quote
		}
	}
	return s
}

// okxBar maps period codes to OKX bar names. Hour and day bars are
// uppercase on OKX ("1H", "1D"), minutes stay lowercase.
func okxBar(period string) string {
	if len(period) == 0 {
		return period
	}
	switch period[len(period)-1] {
	case 'h', 'd', 'y':
		return period[:len(period)-1] + strings.ToUpper(string(period[len(period)-1]))
	default:
		return period
	}
}
