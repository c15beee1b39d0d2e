// Package executor drives one strategy instance across one ascending candle
// series, yielding exactly one signal row per input candle. It owns the
// live-vs-backtest distinction: Run is the shared replay loop, EvaluateTick
// adds live candle sourcing and the optional AI-filter hook.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"tradecore/internal/indicator"
	"tradecore/internal/metrics"
	"tradecore/internal/model"
	"tradecore/internal/strategy"
)

// Executor runs strategies over candle series.
type Executor struct {
	log *slog.Logger
	met *metrics.Metrics // optional
}

// New creates an Executor. met may be nil.
func New(log *slog.Logger, met *metrics.Metrics) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{log: log, met: met}
}

// RunResult is the outcome of one full-series run.
type RunResult struct {
	Strategy      string            `json:"strategy"`
	Rows          []model.SignalRow `json:"rows"`
	IndicatorKeys []string          `json:"indicator_keys"`
}

// Run executes strat over series:
//
//  1. Validates ascending order (fails fast on ErrNotAscending).
//  2. Resolves the strategy's indicator requests once.
//  3. Steps through candles sequentially; step i only sees indicator arrays
//     and price history truncated to [0..i] — no lookahead in either regime.
//  4. A step failure (error or panic) is logged with market context and that
//     step's signal is dropped; the run continues.
//  5. The carried signal follows the close/carry rule between steps.
func (e *Executor) Run(ctx context.Context, strat strategy.Strategy, series model.Series) (*RunResult, error) {
	started := time.Now()
	if err := series.ValidateAscending(); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return &RunResult{Strategy: strat.Name()}, nil
	}

	values, err := indicator.Compute(series, strat.Indicators())
	if err != nil {
		return nil, fmt.Errorf("resolve indicators for %s: %w", strat.Name(), err)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	closes := series.Closes()
	rows := make([]model.SignalRow, 0, len(series))
	carried := model.SignalNone

	for i := range series {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := &series[i]

		truncated := make(map[string][]float64, len(values))
		for name, arr := range values {
			truncated[name] = arr[:i+1]
		}
		sctx := &strategy.Context{
			TS:     c.TS,
			Close:  c.Close,
			Last:   carried,
			Prices: closes[:i+1],
			Values: truncated,
		}
		out := strategy.NewCollector()

		sig := model.SignalNone
		if stepErr := safeStep(strat, sctx, out); stepErr != nil {
			e.log.Error("strategy step failed, skipping",
				"strategy", strat.Name(),
				"market", c.Key(),
				"ts", c.TS,
				"err", stepErr)
			if e.met != nil {
				e.met.StepFailures.Inc()
			}
		} else {
			sig = out.Signal()
		}

		rows = append(rows, model.SignalRow{
			TS:     c.TS,
			Price:  c.Close,
			Signal: sig,
			Debug:  out.Debug(),
		})
		if e.met != nil {
			e.met.RowsTotal.Inc()
			if sig != model.SignalNone {
				e.met.SignalsTotal.WithLabelValues(strat.Name(), string(sig)).Inc()
			}
		}

		carried = carry(carried, sig)
	}

	if e.met != nil {
		e.met.ExecutorRunDur.Observe(time.Since(started).Seconds())
	}
	return &RunResult{Strategy: strat.Name(), Rows: rows, IndicatorKeys: keys}, nil
}

// safeStep invokes the strategy step, converting a panic into an error so one
// bad candle cannot abort a whole backtest or stall a live tick.
func safeStep(strat strategy.Strategy, sctx *strategy.Context, out *strategy.Collector) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panic: %v", r)
		}
	}()
	return strat.Step(sctx, out)
}

// carry applies the close/carry rule: close clears the position, any other
// signal becomes the carried signal, none keeps the previous one.
func carry(prev, sig model.Signal) model.Signal {
	switch sig {
	case model.SignalClose:
		return model.SignalNone
	case model.SignalNone:
		return prev
	default:
		return sig
	}
}
