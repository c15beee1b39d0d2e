package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradecore/internal/metrics"
	"tradecore/internal/model"
	"tradecore/internal/ringbuf"
	"tradecore/internal/store/redis"
)

const defaultBinanceWSURL = "wss://stream.binance.com:9443"

// Pair names one symbol/period stream subscription.
type Pair struct {
	Symbol string
	Period string
}

// StreamCollector subscribes to Binance kline streams and records closed
// candles into a per-pair ring window and, when configured, the Redis
// recent-candle cache. Partially formed klines are ignored; only the final
// update of each bucket (the "closed" flag) produces a candle.
type StreamCollector struct {
	wsURL string
	cache *redis.Cache // optional
	met   *metrics.Metrics

	mu      sync.RWMutex
	windows map[string]*ringbuf.Window
	lastMsg map[string]time.Time
}

// NewStreamCollector creates a collector. cache may be nil; the ring
// windows then carry the recent candles alone. met may be nil.
func NewStreamCollector(wsURL string, cache *redis.Cache, met *metrics.Metrics) *StreamCollector {
	if wsURL == "" {
		wsURL = defaultBinanceWSURL
	}
	return &StreamCollector{
		wsURL:   strings.TrimRight(wsURL, "/"),
		cache:   cache,
		met:     met,
		windows: make(map[string]*ringbuf.Window),
		lastMsg: make(map[string]time.Time),
	}
}

// Run connects to the combined stream for pairs and blocks until ctx is
// cancelled, reconnecting with backoff on any read failure.
func (sc *StreamCollector) Run(ctx context.Context, pairs []Pair) error {
	if len(pairs) == 0 {
		return fmt.Errorf("stream: no pairs to subscribe")
	}

	streams := make([]string, 0, len(pairs))
	for _, p := range pairs {
		streams = append(streams, fmt.Sprintf("%s@kline_%s", strings.ToLower(p.Symbol), p.Period))
		sc.window(keyOf("binance", strings.ToLower(p.Symbol), p.Period))
	}
	endpoint := sc.wsURL + "/stream?streams=" + strings.Join(streams, "/")

	backoff := time.Second
	for {
		if err := sc.readLoop(ctx, endpoint); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[stream] read loop: %v, reconnecting in %s", err, backoff)
			if sc.met != nil {
				sc.met.StreamReconnects.Inc()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (sc *StreamCollector) readLoop(ctx context.Context, endpoint string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	log.Printf("[stream] connected %s", endpoint)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if err := sc.handleMessage(ctx, data); err != nil {
			log.Printf("[stream] message: %v", err)
		}
	}
}

// combinedMsg is Binance's combined-stream envelope around a kline event.
type combinedMsg struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol string `json:"s"`
		Kline  struct {
			OpenTime int64  `json:"t"`
			Interval string `json:"i"`
			Open     string `json:"o"`
			High     string `json:"h"`
			Low      string `json:"l"`
			Close    string `json:"c"`
			Volume   string `json:"v"`
			Closed   bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

func (sc *StreamCollector) handleMessage(ctx context.Context, data []byte) error {
	var msg combinedMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	k := msg.Data.Kline
	if k.Interval == "" {
		return nil // not a kline event
	}

	symbol := strings.ToLower(msg.Data.Symbol)
	key := keyOf("binance", symbol, k.Interval)
	sc.touch(key)

	if !k.Closed {
		return nil
	}

	var f [5]float64 // open, high, low, close, volume
	for i, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("kline field %d: %w", i, err)
		}
		f[i] = v
	}
	// Reject implausible klines here; a bad message drops, the stream
	// keeps going.
	c, err := model.NewCandle("binance", symbol, k.Interval, k.OpenTime/1000, f[0], f[1], f[2], f[3], f[4])
	if err != nil {
		return fmt.Errorf("kline: %w", err)
	}

	sc.window(key).Push(c)
	if sc.met != nil {
		sc.met.StreamCandles.Inc()
	}
	if sc.cache != nil {
		start := time.Now()
		if err := sc.cache.AddClosed(ctx, c); err != nil {
			log.Printf("[stream] redis write %s: %v", key, err)
		} else if sc.met != nil {
			sc.met.RedisWriteDur.Observe(time.Since(start).Seconds())
		}
	}
	return nil
}

// IsStreaming reports whether the collector has heard from the given
// pair's stream within the last two periods. A silent stream means the
// caller should fall back to REST.
func (sc *StreamCollector) IsStreaming(exchange, symbol, period string) bool {
	d, err := model.PeriodDuration(period)
	if err != nil {
		return false
	}
	sc.mu.RLock()
	last, ok := sc.lastMsg[keyOf(exchange, symbol, period)]
	sc.mu.RUnlock()
	return ok && time.Since(last) < 2*d
}

// Recent returns up to limit most recent closed candles for the pair,
// ascending. Redis is preferred when configured since it survives
// restarts; the in-process window is the fallback.
func (sc *StreamCollector) Recent(ctx context.Context, exchange, symbol, period string, limit int) (model.Series, error) {
	if sc.cache != nil {
		s, err := sc.cache.ReadRecent(ctx, exchange, symbol, period, limit)
		if err == nil && len(s) > 0 {
			return s, nil
		}
		if err != nil {
			log.Printf("[stream] redis read %s: %v", keyOf(exchange, symbol, period), err)
		}
	}

	sc.mu.RLock()
	w, ok := sc.windows[keyOf(exchange, symbol, period)]
	sc.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	s := w.SnapshotAscending()
	if len(s) > limit {
		s = s[len(s)-limit:]
	}
	return s, nil
}

func (sc *StreamCollector) window(key string) *ringbuf.Window {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	w, ok := sc.windows[key]
	if !ok {
		w = ringbuf.New(500)
		sc.windows[key] = w
	}
	return w
}

func (sc *StreamCollector) touch(key string) {
	sc.mu.Lock()
	sc.lastMsg[key] = time.Now()
	sc.mu.Unlock()
}

func keyOf(exchange, symbol, period string) string {
	return exchange + ":" + symbol + ":" + period
}
