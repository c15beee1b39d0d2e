// cmd/scan runs the composite TA scorer across a basket of trading pairs
// and prints a tier-sorted table.
//
// Usage:
//
//	go run ./cmd/scan --symbols=btcusdt,ethusdt,solusdt --period=1h
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"tradecore/config"
	"tradecore/internal/logger"
	"tradecore/internal/marketdata"
	"tradecore/internal/model"
	"tradecore/internal/tascore"
)

func main() {
	cfg := config.Load()

	exchange := flag.String("exchange", cfg.Exchange, "Exchange identifier (binance, okx)")
	symbols := flag.String("symbols", "btcusdt,ethusdt", "Comma-separated symbols to scan")
	period := flag.String("period", "1h", "Candle period code")
	lookback := flag.Int("lookback", 200, "Candles per symbol")
	jsonOut := flag.Bool("json", false, "Print results as JSON")
	flag.Parse()

	logger.Init("scan", logger.ParseLevel(cfg.LogLevel))

	src, err := marketdata.NewSource(*exchange, cfg.BinanceURL)
	if err != nil {
		log.Fatalf("[scan] %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Fetches are independent per symbol; fan out and join.
	batch := make(map[string]model.Series)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, sym := range strings.Split(*symbols, ",") {
		sym = strings.TrimSpace(strings.ToLower(sym))
		if sym == "" {
			continue
		}
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			series, err := src.Fetch(ctx, sym, *period, *lookback)
			if err != nil {
				log.Printf("[scan] fetch %s: %v", sym, err)
				return
			}
			mu.Lock()
			batch[sym] = series
			mu.Unlock()
		}(sym)
	}
	wg.Wait()
	if len(batch) == 0 {
		log.Fatal("[scan] nothing fetched")
	}

	results := tascore.New(nil).ScanAll(ctx, batch)

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			log.Fatalf("[scan] encode: %v", err)
		}
		return
	}

	// Strongest reads first.
	sort.SliceStable(results, func(a, b int) bool {
		ra, rb := results[a].Result, results[b].Result
		if ra == nil || rb == nil {
			return rb == nil && ra != nil
		}
		return ra.Score > rb.Score
	})

	fmt.Printf("%-12s %-12s %7s %7s %8s %8s\n", "SYMBOL", "TIER", "SCORE", "CONF", "SQUEEZE", "SIGNAL")
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%-12s error: %v\n", r.Key, r.Err)
			continue
		}
		res := r.Result
		sig := string(res.Signal)
		if sig == "" {
			sig = "-"
		}
		fmt.Printf("%-12s %-12s %7.3f %7.3f %8v %8s\n",
			r.Key, res.Tier, res.Score, res.Confidence, res.Squeeze, sig)
	}
}
