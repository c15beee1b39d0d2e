// cmd/livebot evaluates strategies against live exchange candles, one
// decision per closed period per pair, with optional AI signal filtering.
//
// Usage:
//
//	PAIRS=btcusdt:15m,ethusdt:1h STRATEGY=emacross go run ./cmd/livebot
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tradecore/config"
	"tradecore/internal/aifilter"
	"tradecore/internal/executor"
	"tradecore/internal/logger"
	"tradecore/internal/marketdata"
	"tradecore/internal/metrics"
	"tradecore/internal/model"
	redisstore "tradecore/internal/store/redis"
	"tradecore/internal/strategy"
)

func main() {
	cfg := config.Load()
	slogger := logger.Init("livebot", logger.ParseLevel(cfg.LogLevel))

	pairs := cfg.ParsePairs()
	if len(pairs) == 0 {
		log.Fatal("[livebot] no valid pairs configured")
	}
	strat, err := strategy.New(cfg.Strategy)
	if err != nil {
		log.Fatalf("[livebot] %v", err)
	}

	met := metrics.New()

	src, err := marketdata.NewSource(cfg.Exchange, cfg.BinanceURL)
	if err != nil {
		log.Fatalf("[livebot] %v", err)
	}

	var cache *redisstore.Cache
	if cfg.RedisAddr != "" {
		cache, err = redisstore.NewCache(redisstore.CacheConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatalf("[livebot] redis: %v", err)
		}
		defer cache.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slogger.Info("shutting down")
		cancel()
	}()

	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
			slogger.Error("metrics server stopped", "err", err)
		}
	}()

	var stream *marketdata.StreamCollector
	if cfg.StreamEnabled && cfg.Exchange == "binance" {
		stream = marketdata.NewStreamCollector(cfg.BinanceWSURL, cache, met)
		go func() {
			if err := stream.Run(ctx, pairs); err != nil && ctx.Err() == nil {
				slogger.Error("stream collector stopped", "err", err)
			}
		}()
	}

	filter := aifilter.NewClient(cfg.AIFilterURL, cfg.AIFilterEnabled)
	clock := marketdata.NewPeriodClock(3 * time.Second)
	live := executor.NewLive(executor.New(slogger, met), src, streamReader(stream), filter, clock)

	slogger.Info("live evaluation starting",
		"exchange", cfg.Exchange, "strategy", strat.Name(), "pairs", len(pairs))

	var wg sync.WaitGroup
	for _, p := range pairs {
		wg.Add(1)
		go func(p marketdata.Pair) {
			defer wg.Done()
			runPair(ctx, slogger, live, strat, executor.LiveConfig{
				Exchange: cfg.Exchange,
				Symbol:   p.Symbol,
				Period:   p.Period,
				Lookback: cfg.LookbackBars,
			}, clock)
		}(p)
	}
	wg.Wait()
}

// streamReader converts a possibly-nil collector into the executor's
// optional interface without producing a typed-nil.
func streamReader(sc *marketdata.StreamCollector) executor.StreamReader {
	if sc == nil {
		return nil
	}
	return sc
}

// runPair ticks one pair until ctx is cancelled. Pairs are independent:
// each decision depends only on its own candle history.
func runPair(ctx context.Context, slogger *slog.Logger, live *executor.Live, strat strategy.Strategy, cfg executor.LiveConfig, clock *marketdata.PeriodClock) {
	ticks, err := clock.Ticks(ctx, cfg.Period)
	if err != nil {
		slogger.Error("bad period, pair disabled", "symbol", cfg.Symbol, "period", cfg.Period, "err", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ticks:
			if !ok {
				return
			}
			tickCtx := logger.WithTraceID(ctx,
				logger.GenerateTraceID(cfg.Exchange, cfg.Symbol, cfg.Period, t))

			res, err := live.EvaluateTick(tickCtx, strat, cfg)
			if err != nil {
				slogger.Error("tick evaluation failed",
					append([]any{"symbol", cfg.Symbol, "period", cfg.Period, "err", err},
						logger.Attrs(tickCtx)...)...)
				continue
			}
			switch {
			case res.NoData, res.Stale:
				// Quiet tick, already logged inside the executor.
			case res.Signal != model.SignalNone:
				slogger.Info("signal",
					append([]any{
						"symbol", cfg.Symbol, "period", cfg.Period,
						"signal", res.Signal, "price", res.Price, "ts", res.TS,
					}, logger.Attrs(tickCtx)...)...)
			default:
				slogger.Info("no signal",
					append([]any{"symbol", cfg.Symbol, "period", cfg.Period, "ts", res.TS},
						logger.Attrs(tickCtx)...)...)
			}
		}
	}
}
