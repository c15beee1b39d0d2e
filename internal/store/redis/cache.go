// Package redis caches the most recent closed candles per market so the live
// fast path can read them without a venue round trip. Candles live in a
// sorted set keyed by market, scored by bucket start, trimmed to a fixed
// depth, with a TTL so idle markets fall out on their own.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tradecore/internal/model"
)

const (
	defaultMaxCandles = 1000
	defaultTTL        = 24 * time.Hour
)

// CacheConfig configures the candle cache.
type CacheConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	// MaxCandles is the per-market retention depth. Default 1000.
	MaxCandles int
	// TTL refreshes on every write. Default 24h.
	TTL time.Duration
}

// Cache reads and writes recent closed candles in Redis.
type Cache struct {
	client *goredis.Client
	max    int
	ttl    time.Duration
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// NewCache connects to Redis and pings the server.
func NewCache(cfg CacheConfig) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	max := cfg.MaxCandles
	if max <= 0 {
		max = defaultMaxCandles
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Cache{client: client, max: max, ttl: ttl}, nil
}

func candleKey(exchange, symbol, period string) string {
	return "candles:" + exchange + ":" + symbol + ":" + period
}

// AddClosed stores one closed candle. A candle for an already-stored bucket
// replaces the old entry (same score, member rewritten).
func (c *Cache) AddClosed(ctx context.Context, candle model.Candle) error {
	body, err := json.Marshal(candle)
	if err != nil {
		return fmt.Errorf("redis marshal candle: %w", err)
	}
	key := candleKey(candle.Exchange, candle.Symbol, candle.Period)

	pipe := c.client.TxPipeline()
	// Drop any previous member for this bucket before inserting the new one.
	score := fmt.Sprintf("%d", candle.TS)
	pipe.ZRemRangeByScore(ctx, key, score, score)
	pipe.ZAdd(ctx, key, &goredis.Z{Score: float64(candle.TS), Member: body})
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-(c.max + 1)))
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis add candle %s: %w", key, err)
	}
	return nil
}

// ReadRecent returns up to limit of the newest candles, ascending.
func (c *Cache) ReadRecent(ctx context.Context, exchange, symbol, period string, limit int) (model.Series, error) {
	key := candleKey(exchange, symbol, period)
	raw, err := c.client.ZRevRangeByScore(ctx, key, &goredis.ZRangeBy{
		Min: "-inf", Max: "+inf", Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read %s: %w", key, err)
	}

	// ZREVRANGE gives newest-first; decode then reverse at the boundary.
	out := make(model.Series, 0, len(raw))
	for _, item := range raw {
		var candle model.Candle
		if err := json.Unmarshal([]byte(item), &candle); err != nil {
			return nil, fmt.Errorf("redis decode candle in %s: %w", key, err)
		}
		out = append(out, candle)
	}
	return out.Reversed(), nil
}

// Close releases the client.
func (c *Cache) Close() error { return c.client.Close() }
