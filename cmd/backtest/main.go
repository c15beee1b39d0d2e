// cmd/backtest replays historical candles through a strategy and prints
// the simulated trade list and summary statistics.
//
// Usage:
//
//	go run ./cmd/backtest --symbol=btcusdt --period=1h --strategy=emacross --capital=10000
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradecore/config"
	"tradecore/internal/backtest"
	"tradecore/internal/executor"
	"tradecore/internal/logger"
	"tradecore/internal/marketdata"
	sqlitestore "tradecore/internal/store/sqlite"
)

func main() {
	cfg := config.Load()

	exchange := flag.String("exchange", cfg.Exchange, "Exchange identifier (binance, okx)")
	symbol := flag.String("symbol", "btcusdt", "Trading pair symbol")
	period := flag.String("period", "1h", "Candle period code (15m, 1h, 1d)")
	strategyName := flag.String("strategy", cfg.Strategy, "Strategy name")
	capital := flag.Float64("capital", cfg.InitialCapital, "Initial capital")
	lookback := flag.Int("lookback", 500, "Number of candles to replay")
	fromTS := flag.Int64("from", 0, "Window start unix time (0 = use lookback)")
	toTS := flag.Int64("to", 0, "Window end unix time")
	dbPath := flag.String("db", cfg.SQLitePath, "Path to SQLite candle database")
	jsonOut := flag.Bool("json", false, "Print the full response as JSON")
	flag.Parse()

	slogger := logger.Init("backtest", logger.ParseLevel(cfg.LogLevel))

	store, err := sqlitestore.Open(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer store.Close()

	src, err := marketdata.NewSource(*exchange, cfg.BinanceURL)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	runner := backtest.NewRunner(slogger, executor.New(slogger, nil), store, src, nil)
	resp, err := runner.Run(ctx, backtest.Request{
		Exchange:       *exchange,
		Symbol:         *symbol,
		Period:         *period,
		Strategy:       *strategyName,
		InitialCapital: *capital,
		FromTS:         *fromTS,
		ToTS:           *toTS,
		Lookback:       *lookback,
	})
	if err != nil {
		log.Fatalf("[backtest] run failed: %v", err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			log.Fatalf("[backtest] encode: %v", err)
		}
		return
	}

	for i, tr := range resp.Trades {
		forced := ""
		if tr.ForcedClose {
			forced = " (forced)"
		}
		fmt.Printf("  #%-3d %-5s entry %s @ %.4f  exit %s @ %.4f  %+.2f%%%s\n",
			i+1, tr.Side,
			time.Unix(tr.EntryTS, 0).Format("2006-01-02 15:04"), tr.EntryPrice,
			time.Unix(tr.ExitTS, 0).Format("2006-01-02 15:04"), tr.ExitPrice,
			tr.ProfitPct, forced)
	}

	s := resp.Summary
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Strategy:        %-18s ║\n", resp.Strategy)
	fmt.Printf("║  Candles:         %-18d ║\n", len(resp.Candles))
	fmt.Printf("║  Trades:          %-18d ║\n", s.Trades)
	fmt.Printf("║  Win rate:        %-17.2f%% ║\n", s.WinRate)
	fmt.Printf("║  Total profit:    %-17.2f%% ║\n", s.TotalProfitPct)
	fmt.Printf("║  Max drawdown:    %-17.2f%% ║\n", s.MaxDrawdownPct)
	fmt.Printf("║  Risk ratio:      %-18.3f ║\n", s.RiskRatio)
	fmt.Printf("║  Final capital:   %-18.2f ║\n", s.FinalCapital)
	fmt.Println("╚══════════════════════════════════════╝")
}
