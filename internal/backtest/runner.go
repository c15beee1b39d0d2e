package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradecore/internal/executor"
	"tradecore/internal/marketdata"
	"tradecore/internal/metrics"
	"tradecore/internal/model"
	"tradecore/internal/store/sqlite"
	"tradecore/internal/strategy"
)

// Request describes one backtest. Either an explicit [FromTS, ToTS]
// window or a Lookback candle count selects the series; the window wins
// when both are set.
type Request struct {
	Exchange       string  `json:"exchange"`
	Symbol         string  `json:"symbol"`
	Period         string  `json:"period"`
	Strategy       string  `json:"strategy"`
	InitialCapital float64 `json:"initial_capital"`

	FromTS   int64 `json:"from_ts,omitempty"`
	ToTS     int64 `json:"to_ts,omitempty"`
	Lookback int   `json:"lookback,omitempty"`
}

// Response is the full backtest outcome: summary, trades, the signal-row
// trace, and the raw candles for charting.
type Response struct {
	Strategy      string            `json:"strategy"`
	FromTS        int64             `json:"from_ts"`
	ToTS          int64             `json:"to_ts"`
	Summary       model.Summary     `json:"summary"`
	Trades        []model.Trade     `json:"trades"`
	Rows          []model.SignalRow `json:"rows"`
	IndicatorKeys []string          `json:"indicator_keys"`
	Candles       model.Series      `json:"candles"`
}

// Runner loads candle history and runs strategies against it. The SQLite
// store is the preferred source; when it has no rows for the request the
// runner fetches from the exchange and backfills the store.
type Runner struct {
	log   *slog.Logger
	exec  *executor.Executor
	store *sqlite.Store     // optional
	src   marketdata.Source // optional
	met   *metrics.Metrics  // optional
}

func NewRunner(log *slog.Logger, exec *executor.Executor, store *sqlite.Store, src marketdata.Source, met *metrics.Metrics) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{log: log, exec: exec, store: store, src: src, met: met}
}

// Run executes one backtest end to end: load candles, replay the
// strategy, simulate trades.
func (r *Runner) Run(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()
	if req.InitialCapital <= 0 {
		req.InitialCapital = 10000
	}
	if req.Lookback <= 0 {
		req.Lookback = 500
	}

	strat, err := strategy.New(req.Strategy)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	series, err := r.loadCandles(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("backtest: %w: no candles for %s:%s:%s", model.ErrInsufficientData, req.Exchange, req.Symbol, req.Period)
	}

	res, err := r.exec.Run(ctx, strat, series)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	trades, summary, err := Simulate(res.Rows, req.InitialCapital)
	if err != nil {
		return nil, err
	}

	r.log.Info("backtest complete",
		"strategy", strat.Name(),
		"market", series[0].Key(),
		"candles", len(series),
		"trades", summary.Trades,
		"final_capital", summary.FinalCapital,
		"took", time.Since(started))
	if r.met != nil {
		r.met.BacktestDur.Observe(time.Since(started).Seconds())
	}

	return &Response{
		Strategy:      res.Strategy,
		FromTS:        series[0].TS,
		ToTS:          series[len(series)-1].TS,
		Summary:       summary,
		Trades:        trades,
		Rows:          res.Rows,
		IndicatorKeys: res.IndicatorKeys,
		Candles:       series,
	}, nil
}

// RunSeries executes a backtest over a caller-supplied candle window,
// bypassing storage entirely.
func (r *Runner) RunSeries(ctx context.Context, strategyName string, series model.Series, initialCapital float64) (*Response, error) {
	strat, err := strategy.New(strategyName)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	if initialCapital <= 0 {
		initialCapital = 10000
	}
	res, err := r.exec.Run(ctx, strat, series)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	trades, summary, err := Simulate(res.Rows, initialCapital)
	if err != nil {
		return nil, err
	}
	resp := &Response{
		Strategy:      res.Strategy,
		Summary:       summary,
		Trades:        trades,
		Rows:          res.Rows,
		IndicatorKeys: res.IndicatorKeys,
		Candles:       series,
	}
	if len(series) > 0 {
		resp.FromTS = series[0].TS
		resp.ToTS = series[len(series)-1].TS
	}
	return resp, nil
}

func (r *Runner) loadCandles(ctx context.Context, req Request) (model.Series, error) {
	if r.store != nil {
		s, err := r.readStore(req)
		if err != nil {
			return nil, err
		}
		if len(s) > 0 {
			return s, nil
		}
	}

	if r.src == nil {
		return nil, nil
	}
	r.log.Info("no stored candles, fetching from exchange",
		"exchange", req.Exchange, "symbol", req.Symbol, "period", req.Period)
	s, err := r.src.Fetch(ctx, req.Symbol, req.Period, req.Lookback)
	if err != nil {
		return nil, fmt.Errorf("backtest: fetch candles: %w", err)
	}
	if r.store != nil && len(s) > 0 {
		if err := r.store.WriteCandles(s); err != nil {
			r.log.Warn("backfill write failed", "err", err)
		}
	}
	return s, nil
}

func (r *Runner) readStore(req Request) (model.Series, error) {
	if req.FromTS > 0 && req.ToTS > 0 {
		s, err := r.store.ReadRange(req.Exchange, req.Symbol, req.Period, req.FromTS, req.ToTS)
		if err != nil {
			return nil, fmt.Errorf("backtest: read range: %w", err)
		}
		return s, nil
	}
	s, err := r.store.ReadLast(req.Exchange, req.Symbol, req.Period, req.Lookback)
	if err != nil {
		return nil, fmt.Errorf("backtest: read last: %w", err)
	}
	return s, nil
}
