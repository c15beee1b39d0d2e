package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"tradecore/internal/marketdata"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Market data
	Exchange      string
	BinanceURL    string
	BinanceWSURL  string
	OKXURL        string
	Pairs         string // comma-separated symbol:period entries
	LookbackBars  int
	StreamEnabled bool

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	LogLevel      string

	// AI advisory filter
	AIFilterURL     string
	AIFilterEnabled bool

	// Backtest defaults
	Strategy       string
	InitialCapital float64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Exchange:      getEnv("EXCHANGE", "binance"),
		BinanceURL:    getEnv("BINANCE_URL", ""),
		BinanceWSURL:  getEnv("BINANCE_WS_URL", ""),
		OKXURL:        getEnv("OKX_URL", ""),
		Pairs:         getEnv("PAIRS", "btcusdt:15m"),
		LookbackBars:  getEnvInt("LOOKBACK_BARS", 300),
		StreamEnabled: getEnvBool("STREAM_ENABLED", true),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/candles.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		AIFilterURL:     getEnv("AI_FILTER_URL", ""),
		AIFilterEnabled: getEnvBool("AI_FILTER_ENABLED", false),

		Strategy:       getEnv("STRATEGY", "emacross"),
		InitialCapital: getEnvFloat("INITIAL_CAPITAL", 10000),
	}
}

// ParsePairs parses the Pairs string ("btcusdt:15m,ethusdt:1h") into
// stream subscriptions. Malformed entries are skipped with a log line.
func (c *Config) ParsePairs() []marketdata.Pair {
	parts := strings.Split(c.Pairs, ",")
	pairs := make([]marketdata.Pair, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sym, period, ok := strings.Cut(p, ":")
		if !ok || sym == "" || period == "" {
			log.Printf("[config] skipping invalid pair entry: %q", p)
			continue
		}
		pairs = append(pairs, marketdata.Pair{Symbol: strings.ToLower(sym), Period: period})
	}
	return pairs
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return b
}
