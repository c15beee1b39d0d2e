package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradecore/internal/aifilter"
	"tradecore/internal/indicator"
	"tradecore/internal/marketdata"
	"tradecore/internal/model"
	"tradecore/internal/strategy"
)

// alwaysLong fires a long on every step.
type alwaysLong struct{}

func (alwaysLong) Name() string { return "alwayslong" }
func (alwaysLong) Indicators() map[string]indicator.Definition {
	return map[string]indicator.Definition{"sma": indicator.SMA(2)}
}
func (alwaysLong) Step(sctx *strategy.Context, out *strategy.Collector) error {
	out.OpenLong()
	out.Note("close", sctx.Close)
	return nil
}

type fakeSource struct {
	series model.Series
	err    error
	calls  int
}

func (f *fakeSource) Exchange() string { return "binance" }
func (f *fakeSource) Fetch(ctx context.Context, symbol, period string, limit int) (model.Series, error) {
	f.calls++
	return f.series, f.err
}
func (f *fakeSource) FetchSince(ctx context.Context, symbol, period string, sinceTS int64) (model.Series, error) {
	return f.series, f.err
}

type fakeStream struct {
	streaming bool
	series    model.Series
}

func (f *fakeStream) IsStreaming(exchange, symbol, period string) bool { return f.streaming }
func (f *fakeStream) Recent(ctx context.Context, exchange, symbol, period string, limit int) (model.Series, error) {
	return f.series, nil
}

type fakeFilter struct {
	verdict *aifilter.Verdict
	err     error
	req     *aifilter.Request
}

func (f *fakeFilter) Enabled() bool { return true }
func (f *fakeFilter) Analyze(ctx context.Context, req aifilter.Request) (*aifilter.Verdict, error) {
	f.req = &req
	return f.verdict, f.err
}

// seriesEndingAt builds n 15m candles whose last candle opens at endTS.
func seriesEndingAt(endTS int64, n int) model.Series {
	s := make(model.Series, n)
	for i := 0; i < n; i++ {
		ts := endTS - int64(n-1-i)*900
		price := 100.0 + float64(i)
		s[i] = model.Candle{
			Exchange: "binance", Symbol: "btcusdt", Period: "15m",
			TS: ts, Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 5,
		}
	}
	return s
}

func lastClosed15m(t *testing.T) int64 {
	t.Helper()
	cur, err := model.PeriodStart(time.Now().Unix(), "15m")
	if err != nil {
		t.Fatalf("PeriodStart: %v", err)
	}
	return cur - 900
}

func liveCfg() LiveConfig {
	return LiveConfig{Exchange: "binance", Symbol: "btcusdt", Period: "15m", Lookback: 4}
}

func newLive(src marketdata.Source, stream StreamReader, filter aifilter.Filter) *Live {
	return NewLive(New(nil, nil), src, stream, filter, marketdata.NewPeriodClock(0))
}

func TestEvaluateTickFreshData(t *testing.T) {
	expected := lastClosed15m(t)
	src := &fakeSource{series: seriesEndingAt(expected, 4)}
	l := newLive(src, nil, nil)

	tick, err := l.EvaluateTick(context.Background(), alwaysLong{}, liveCfg())
	if err != nil {
		t.Fatalf("EvaluateTick: %v", err)
	}
	if tick.TS != expected {
		t.Errorf("tick TS = %d, want %d", tick.TS, expected)
	}
	if tick.Signal != model.SignalLong || tick.RawSignal != model.SignalLong {
		t.Errorf("signal = %q raw = %q", tick.Signal, tick.RawSignal)
	}
	if tick.NoData || tick.Stale {
		t.Errorf("fresh tick flagged quiet: %+v", tick)
	}
}

func TestEvaluateTickNoData(t *testing.T) {
	l := newLive(&fakeSource{}, nil, nil)

	tick, err := l.EvaluateTick(context.Background(), alwaysLong{}, liveCfg())
	if err != nil {
		t.Fatalf("empty market data must not error: %v", err)
	}
	if !tick.NoData || tick.Signal != model.SignalNone {
		t.Errorf("tick = %+v, want quiet no-data", tick)
	}
}

func TestEvaluateTickStale(t *testing.T) {
	expected := lastClosed15m(t)
	src := &fakeSource{series: seriesEndingAt(expected-3*900, 4)}
	l := newLive(src, nil, nil)

	tick, err := l.EvaluateTick(context.Background(), alwaysLong{}, liveCfg())
	if err != nil {
		t.Fatalf("stale market data must not error: %v", err)
	}
	if !tick.Stale || tick.Signal != model.SignalNone {
		t.Errorf("tick = %+v, want quiet stale", tick)
	}
}

func TestEvaluateTickExcludesFormingBucket(t *testing.T) {
	expected := lastClosed15m(t)
	// Last candle sits in the still-forming bucket.
	src := &fakeSource{series: seriesEndingAt(expected+900, 5)}
	l := newLive(src, nil, nil)

	tick, err := l.EvaluateTick(context.Background(), alwaysLong{}, liveCfg())
	if err != nil {
		t.Fatalf("EvaluateTick: %v", err)
	}
	if tick.TS != expected {
		t.Errorf("tick TS = %d, want forming bucket dropped down to %d", tick.TS, expected)
	}
}

func TestEvaluateTickSourceFailureQuiet(t *testing.T) {
	src := &fakeSource{err: errors.New("exchange down")}
	l := newLive(src, nil, nil)

	tick, err := l.EvaluateTick(context.Background(), alwaysLong{}, liveCfg())
	if err != nil {
		t.Fatalf("source failure must not propagate: %v", err)
	}
	if !tick.NoData || tick.Signal != model.SignalNone {
		t.Errorf("tick = %+v, want quiet no-data", tick)
	}
}

func TestEvaluateTickPrefersStream(t *testing.T) {
	expected := lastClosed15m(t)
	src := &fakeSource{series: seriesEndingAt(expected, 4)}
	stream := &fakeStream{streaming: true, series: seriesEndingAt(expected, 4)}
	l := newLive(src, stream, nil)

	if _, err := l.EvaluateTick(context.Background(), alwaysLong{}, liveCfg()); err != nil {
		t.Fatalf("EvaluateTick: %v", err)
	}
	if src.calls != 0 {
		t.Errorf("rest source called %d times with healthy stream", src.calls)
	}
}

func TestEvaluateTickStreamThinFallsBack(t *testing.T) {
	expected := lastClosed15m(t)
	src := &fakeSource{series: seriesEndingAt(expected, 4)}
	stream := &fakeStream{streaming: true, series: seriesEndingAt(expected, 1)} // below half of lookback
	l := newLive(src, stream, nil)

	if _, err := l.EvaluateTick(context.Background(), alwaysLong{}, liveCfg()); err != nil {
		t.Fatalf("EvaluateTick: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("rest source called %d times, want fallback", src.calls)
	}
}

func TestEvaluateTickFilterRejects(t *testing.T) {
	expected := lastClosed15m(t)
	src := &fakeSource{series: seriesEndingAt(expected, 4)}
	filter := &fakeFilter{verdict: &aifilter.Verdict{Confirmed: false, Confidence: 0.2, Reasoning: "chop"}}
	l := newLive(src, nil, filter)

	tick, err := l.EvaluateTick(context.Background(), alwaysLong{}, liveCfg())
	if err != nil {
		t.Fatalf("EvaluateTick: %v", err)
	}
	if tick.Signal != model.SignalNone {
		t.Errorf("rejected signal = %q, want cleared", tick.Signal)
	}
	if tick.RawSignal != model.SignalLong {
		t.Errorf("raw signal = %q, want preserved", tick.RawSignal)
	}
	if tick.Verdict == nil || tick.Verdict.Reasoning != "chop" {
		t.Errorf("verdict = %+v", tick.Verdict)
	}
	if filter.req == nil || filter.req.Pair != "btcusdt" || filter.req.Signal != model.SignalLong {
		t.Errorf("filter request = %+v", filter.req)
	}
}

func TestEvaluateTickFilterFailOpen(t *testing.T) {
	expected := lastClosed15m(t)
	src := &fakeSource{series: seriesEndingAt(expected, 4)}
	filter := &fakeFilter{err: errors.New("timeout")}
	l := newLive(src, nil, filter)

	tick, err := l.EvaluateTick(context.Background(), alwaysLong{}, liveCfg())
	if err != nil {
		t.Fatalf("EvaluateTick: %v", err)
	}
	if tick.Signal != model.SignalLong {
		t.Errorf("signal = %q, want original kept on filter failure", tick.Signal)
	}
}

func TestEvaluateTickFilterConfirms(t *testing.T) {
	expected := lastClosed15m(t)
	src := &fakeSource{series: seriesEndingAt(expected, 4)}
	filter := &fakeFilter{verdict: &aifilter.Verdict{Confirmed: true, Confidence: 0.9}}
	l := newLive(src, nil, filter)

	tick, err := l.EvaluateTick(context.Background(), alwaysLong{}, liveCfg())
	if err != nil {
		t.Fatalf("EvaluateTick: %v", err)
	}
	if tick.Signal != model.SignalLong {
		t.Errorf("signal = %q, want confirmed long", tick.Signal)
	}
	if tick.Verdict == nil || tick.Verdict.Confidence != 0.9 {
		t.Errorf("verdict = %+v", tick.Verdict)
	}
}
