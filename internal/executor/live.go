package executor

import (
	"context"
	"fmt"

	"tradecore/internal/aifilter"
	"tradecore/internal/marketdata"
	"tradecore/internal/model"
	"tradecore/internal/strategy"
)

// StreamReader is the subset of the stream collector the live executor
// needs. Satisfied by *marketdata.StreamCollector.
type StreamReader interface {
	IsStreaming(exchange, symbol, period string) bool
	Recent(ctx context.Context, exchange, symbol, period string, limit int) (model.Series, error)
}

// LiveConfig describes one live evaluation target.
type LiveConfig struct {
	Exchange string
	Symbol   string
	Period   string

	// Lookback is how many closed candles each tick evaluates over.
	// Zero means 300.
	Lookback int
}

// Live evaluates strategies against freshly sourced candles, one tick per
// closed period. It prefers the websocket stream cache and falls back to
// REST, never feeds the still-forming bucket to a strategy, and optionally
// passes fired signals through the AI advisory filter.
type Live struct {
	*Executor
	source marketdata.Source
	stream StreamReader    // optional
	filter aifilter.Filter // optional
	clock  *marketdata.PeriodClock
}

// NewLive wires a live executor. stream and filter may be nil.
func NewLive(base *Executor, source marketdata.Source, stream StreamReader, filter aifilter.Filter, clock *marketdata.PeriodClock) *Live {
	return &Live{
		Executor: base,
		source:   source,
		stream:   stream,
		filter:   filter,
		clock:    clock,
	}
}

// TickResult is one live evaluation outcome. Signal is the post-filter
// decision; RawSignal is what the strategy fired before the filter saw it.
type TickResult struct {
	TS        int64              `json:"ts"`
	Price     float64            `json:"price"`
	Signal    model.Signal       `json:"signal"`
	RawSignal model.Signal       `json:"raw_signal"`
	Debug     map[string]float64 `json:"debug,omitempty"`
	Verdict   *aifilter.Verdict  `json:"verdict,omitempty"`

	// NoData and Stale mark quiet ticks: the market gave us nothing fresh
	// to decide on, which is a no-signal outcome rather than an error.
	NoData bool `json:"no_data,omitempty"`
	Stale  bool `json:"stale,omitempty"`
}

// EvaluateTick sources candles for cfg, runs strat over them, and returns
// the decision for the most recently closed bucket.
//
// Missing or stale data yields a quiet no-signal result, not an error:
// exchanges lag and streams drop, and a live loop must keep ticking.
func (l *Live) EvaluateTick(ctx context.Context, strat strategy.Strategy, cfg LiveConfig) (*TickResult, error) {
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = 300
	}

	expected, err := l.clock.LastClosed(cfg.Period)
	if err != nil {
		return nil, fmt.Errorf("live: %w", err)
	}
	curBucket, err := l.clock.CurrentBucket(cfg.Period)
	if err != nil {
		return nil, fmt.Errorf("live: %w", err)
	}

	// A fetch failure is a quiet tick like any other data gap: exchanges
	// have outages and a live loop must keep ticking.
	series, err := l.sourceCandles(ctx, cfg, lookback)
	if err != nil {
		l.log.Warn("candle sourcing failed",
			"exchange", cfg.Exchange, "symbol", cfg.Symbol, "period", cfg.Period,
			"err", err)
		if l.met != nil {
			l.met.SourceFetchErrors.Inc()
		}
		return &TickResult{Signal: model.SignalNone, RawSignal: model.SignalNone, NoData: true}, nil
	}

	// Never evaluate the bucket still forming.
	for len(series) > 0 && series[len(series)-1].TS >= curBucket {
		series = series[:len(series)-1]
	}

	if len(series) == 0 {
		l.log.Warn("no closed candles this tick",
			"exchange", cfg.Exchange, "symbol", cfg.Symbol, "period", cfg.Period)
		if l.met != nil {
			l.met.TickNoData.Inc()
		}
		return &TickResult{Signal: model.SignalNone, RawSignal: model.SignalNone, NoData: true}, nil
	}

	last := series[len(series)-1]
	if last.TS < expected {
		l.log.Warn("latest candle is stale",
			"exchange", cfg.Exchange, "symbol", cfg.Symbol, "period", cfg.Period,
			"have_ts", last.TS, "want_ts", expected)
		if l.met != nil {
			l.met.TickStale.Inc()
		}
		return &TickResult{TS: last.TS, Price: last.Close, Signal: model.SignalNone, RawSignal: model.SignalNone, Stale: true}, nil
	}

	res, err := l.Run(ctx, strat, series)
	if err != nil {
		return nil, fmt.Errorf("live: run %s: %w", strat.Name(), err)
	}

	lastRow := res.Rows[len(res.Rows)-1]
	tick := &TickResult{
		TS:        lastRow.TS,
		Price:     lastRow.Price,
		Signal:    lastRow.Signal,
		RawSignal: lastRow.Signal,
		Debug:     lastRow.Debug,
	}

	if tick.Signal != model.SignalNone && l.filter != nil && l.filter.Enabled() {
		l.applyFilter(ctx, strat, cfg, res, tick)
	}
	return tick, nil
}

// applyFilter submits the fired signal for advisory review. A filter
// failure keeps the original signal; only an explicit rejection clears it.
func (l *Live) applyFilter(ctx context.Context, strat strategy.Strategy, cfg LiveConfig, res *RunResult, tick *TickResult) {
	verdict, err := l.filter.Analyze(ctx, aifilter.Request{
		Pair:       cfg.Symbol,
		Exchange:   cfg.Exchange,
		Signal:     tick.RawSignal,
		Price:      tick.Price,
		Snapshot:   tick.Debug,
		LastSignal: carriedBefore(res.Rows),
		Timeframe:  cfg.Period,
	})
	if err != nil {
		l.log.Warn("ai filter unavailable, proceeding with signal",
			"strategy", strat.Name(), "symbol", cfg.Symbol, "err", err)
		if l.met != nil {
			l.met.FilterOutcomes.WithLabelValues("error").Inc()
		}
		return
	}

	tick.Verdict = verdict
	if !verdict.Confirmed {
		l.log.Info("ai filter rejected signal",
			"strategy", strat.Name(), "symbol", cfg.Symbol,
			"signal", tick.RawSignal, "confidence", verdict.Confidence,
			"reasoning", verdict.Reasoning)
		tick.Signal = model.SignalNone
		if l.met != nil {
			l.met.FilterOutcomes.WithLabelValues("rejected").Inc()
		}
		return
	}
	if l.met != nil {
		l.met.FilterOutcomes.WithLabelValues("confirmed").Inc()
	}
}

// sourceCandles prefers the live stream cache when it is healthy and falls
// back to REST history otherwise.
func (l *Live) sourceCandles(ctx context.Context, cfg LiveConfig, lookback int) (model.Series, error) {
	if l.stream != nil && l.stream.IsStreaming(cfg.Exchange, cfg.Symbol, cfg.Period) {
		s, err := l.stream.Recent(ctx, cfg.Exchange, cfg.Symbol, cfg.Period, lookback)
		if err == nil && len(s) >= lookback/2 {
			return s, nil
		}
		if err != nil {
			l.log.Warn("stream cache read failed, falling back to rest",
				"symbol", cfg.Symbol, "err", err)
		}
	}
	return l.source.Fetch(ctx, cfg.Symbol, cfg.Period, lookback)
}

// carriedBefore replays the close/carry rule over all rows but the last,
// recovering the position state the newest decision was made against.
func carriedBefore(rows []model.SignalRow) model.Signal {
	carried := model.SignalNone
	for _, r := range rows[:len(rows)-1] {
		carried = carry(carried, r.Signal)
	}
	return carried
}
