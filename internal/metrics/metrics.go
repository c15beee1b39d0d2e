// Package metrics defines Prometheus metrics for the decision core and a
// small HTTP server exposing them.
package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Executor
	RowsTotal      prometheus.Counter
	StepFailures   prometheus.Counter
	SignalsTotal   *prometheus.CounterVec // labels: strategy, signal
	ExecutorRunDur prometheus.Histogram

	// Live path
	TickNoData        prometheus.Counter
	TickStale         prometheus.Counter
	SourceFetchErrors prometheus.Counter
	FilterOutcomes    *prometheus.CounterVec // labels: outcome

	// Backtest + scorer
	BacktestDur prometheus.Histogram
	ScoreDur    prometheus.Histogram

	// Stream collector
	StreamCandles    prometheus.Counter
	StreamReconnects prometheus.Counter
	RedisWriteDur    prometheus.Histogram
}

// New registers and returns all engine metrics.
func New() *Metrics {
	m := &Metrics{
		RowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_signal_rows_total",
			Help: "Signal rows produced by the strategy executor",
		}),
		StepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_step_failures_total",
			Help: "Strategy steps that failed and were skipped",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_signals_total",
			Help: "Non-empty signals emitted, by strategy and signal",
		}, []string{"strategy", "signal"}),
		ExecutorRunDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_executor_run_seconds",
			Help:    "Full-series executor run duration",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		TickNoData: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_tick_no_data_total",
			Help: "Live ticks that found no usable candle data",
		}),
		TickStale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_tick_stale_total",
			Help: "Live ticks rejected because the newest candle was stale",
		}),
		SourceFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_source_fetch_errors_total",
			Help: "Candle source fetch failures on the live path",
		}),
		FilterOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_ai_filter_outcomes_total",
			Help: "AI filter outcomes: confirmed, rejected, error",
		}, []string{"outcome"}),
		BacktestDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_backtest_seconds",
			Help:    "Backtest run duration (load + execute + simulate)",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}),
		ScoreDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_ta_score_seconds",
			Help:    "Advanced TA score computation duration",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		StreamCandles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_stream_candles_total",
			Help: "Closed candles received from the WebSocket stream",
		}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_stream_reconnects_total",
			Help: "WebSocket stream reconnect attempts",
		}),
		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_redis_write_seconds",
			Help:    "Redis candle cache write duration",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}

	prometheus.MustRegister(
		m.RowsTotal, m.StepFailures, m.SignalsTotal, m.ExecutorRunDur,
		m.TickNoData, m.TickStale, m.SourceFetchErrors, m.FilterOutcomes,
		m.BacktestDur, m.ScoreDur,
		m.StreamCandles, m.StreamReconnects, m.RedisWriteDur,
	)
	return m
}

// Serve starts the metrics HTTP server on addr. Blocks until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Printf("[metrics] serving on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
