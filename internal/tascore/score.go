// Package tascore computes a composite technical-analysis read on a
// candle series: a normalized score, a confidence estimate, a seven-tier
// classification, per-family divergence checks, and a volatility-squeeze
// flag. It is an independent market view, not wired into any strategy's
// control flow.
package tascore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"tradecore/internal/indicator"
	"tradecore/internal/metrics"
	"tradecore/internal/model"
)

// MinCandles is the hard floor: below this the basket's slowest indicator
// has no meaningful history and analysis fails outright.
const MinCandles = 100

// squeezeRatio flags a squeeze when the latest band width falls under
// this fraction of its trailing average.
const squeezeRatio = 0.75

// squeezeLookback is how many prior band widths form the trailing average.
const squeezeLookback = 20

// Tier is one of the seven ordinal signal classifications.
type Tier string

const (
	TierStrongBuy  Tier = "strong_buy"
	TierBuy        Tier = "buy"
	TierWeakBuy    Tier = "weak_buy"
	TierNeutral    Tier = "neutral"
	TierWeakSell   Tier = "weak_sell"
	TierSell       Tier = "sell"
	TierStrongSell Tier = "strong_sell"
)

// Result is one composite analysis, recomputed fresh per call.
type Result struct {
	Score       float64               `json:"score"`      // [-1, 1]
	Confidence  float64               `json:"confidence"` // [0, 1]
	VolumeConf  float64               `json:"volume_confirmation"`
	Tier        Tier                  `json:"tier"`
	Signal      model.Signal          `json:"signal"` // set only by the four directional non-weak tiers
	Triggered   bool                  `json:"triggered"`
	Divergences map[string]Divergence `json:"divergences"`
	Squeeze     bool                  `json:"squeeze"`
	Snapshot    map[string]float64    `json:"snapshot"`
}

// Scorer analyzes candle series with a fixed indicator basket.
type Scorer struct {
	met *metrics.Metrics // optional
}

func New(met *metrics.Metrics) *Scorer {
	return &Scorer{met: met}
}

// basket is the fixed indicator set every analysis computes.
func basket() map[string]indicator.Definition {
	return map[string]indicator.Definition{
		"rsi":      indicator.RSI(14),
		"macd":     indicator.MACD(12, 26, 9),
		"bb":       indicator.BBands(20, 2.0),
		"ema_fast": indicator.EMA(9),
		"ema_slow": indicator.EMA(21),
		"adx":      indicator.ADX(14),
		"mfi":      indicator.MFI(14),
		"cci":      indicator.CCI(20),
		"stoch":    indicator.Stoch(14, 3, 3),
		"atr":      indicator.ATR(14),
		"obv":      indicator.OBV(),
	}
}

// Analyze computes the composite result for series. Series shorter than
// MinCandles fail outright rather than degrading.
func (s *Scorer) Analyze(series model.Series) (*Result, error) {
	started := time.Now()
	if len(series) < MinCandles {
		return nil, fmt.Errorf("tascore: %w: have %d candles, need %d", model.ErrInsufficientData, len(series), MinCandles)
	}
	if err := series.ValidateAscending(); err != nil {
		return nil, fmt.Errorf("tascore: %w", err)
	}

	vals, err := indicator.Compute(series, basket())
	if err != nil {
		return nil, fmt.Errorf("tascore: %w", err)
	}

	i := len(series) - 1
	closes := series.Closes()

	score := voteScore(vals, closes, i)
	conf := confidence(vals, i)
	volConf := volumeConfirmation(vals, i)
	tier, sig, triggered := classify(score, conf)

	res := &Result{
		Score:       score,
		Confidence:  conf,
		VolumeConf:  volConf,
		Tier:        tier,
		Signal:      sig,
		Triggered:   triggered,
		Divergences: detectAll(closes, vals),
		Squeeze:     squeeze(vals, i),
		Snapshot:    snapshot(vals, i),
	}
	if s.met != nil {
		s.met.ScoreDur.Observe(time.Since(started).Seconds())
	}
	return res, nil
}

// vote is one indicator's weighted, signed contribution.
type vote struct {
	weight float64
	value  float64 // [-1, 1]
}

// voteScore aggregates the basket's threshold-band votes into a
// normalized score.
func voteScore(vals map[string][]float64, closes []float64, i int) float64 {
	price := closes[i]
	var votes []vote

	// Neutral RSI is constructive; extremes are penalized.
	if rsi := at(vals, "rsi", i); !math.IsNaN(rsi) {
		switch {
		case rsi >= 40 && rsi <= 60:
			votes = append(votes, vote{2.0, 1})
		case rsi > 70 || rsi < 30:
			votes = append(votes, vote{2.0, -1})
		case rsi > 60:
			votes = append(votes, vote{2.0, 0.3})
		default: // 30..40
			votes = append(votes, vote{2.0, -0.3})
		}
	}

	// A histogram zero-cross votes strongly in the cross direction; mere
	// continuation on the same side votes weaker.
	hist, prevHist := at(vals, "macd_hist", i), at(vals, "macd_hist", i-1)
	if !math.IsNaN(hist) && !math.IsNaN(prevHist) {
		switch {
		case prevHist <= 0 && hist > 0:
			votes = append(votes, vote{3.0, 1})
		case prevHist >= 0 && hist < 0:
			votes = append(votes, vote{3.0, -1})
		case hist > 0:
			votes = append(votes, vote{3.0, 0.4})
		case hist < 0:
			votes = append(votes, vote{3.0, -0.4})
		}
	}

	// Price inside the bands is healthy; a breakout beyond the upper band
	// is stretched.
	upper, lower := at(vals, "bb_upper", i), at(vals, "bb_lower", i)
	if !math.IsNaN(upper) && !math.IsNaN(lower) {
		switch {
		case price > upper:
			votes = append(votes, vote{1.5, -1})
		case price < lower:
			votes = append(votes, vote{1.5, -0.5})
		default:
			votes = append(votes, vote{1.5, 0.5})
		}
	}

	// Binary trend vote from EMA ordering.
	fast, slow := at(vals, "ema_fast", i), at(vals, "ema_slow", i)
	emaValid := !math.IsNaN(fast) && !math.IsNaN(slow)
	trendUp := emaValid && fast > slow
	if emaValid {
		if trendUp {
			votes = append(votes, vote{2.0, 1})
		} else {
			votes = append(votes, vote{2.0, -1})
		}
	}

	// ADX confirms whatever the EMA trend says once it shows strength;
	// without a valid trend read there is no direction to confirm.
	if adx := at(vals, "adx", i); emaValid && !math.IsNaN(adx) && adx > 25 {
		if trendUp {
			votes = append(votes, vote{1.0, 0.5})
		} else {
			votes = append(votes, vote{1.0, -0.5})
		}
	}

	if mfi := at(vals, "mfi", i); !math.IsNaN(mfi) {
		switch {
		case mfi < 20:
			votes = append(votes, vote{1.0, 0.5})
		case mfi > 80:
			votes = append(votes, vote{1.0, -0.5})
		}
	}

	if cci := at(vals, "cci", i); !math.IsNaN(cci) {
		switch {
		case cci < -100:
			votes = append(votes, vote{1.0, 0.5})
		case cci > 100:
			votes = append(votes, vote{1.0, -0.5})
		}
	}

	if k := at(vals, "stoch_k", i); !math.IsNaN(k) {
		switch {
		case k < 20:
			votes = append(votes, vote{1.0, 0.5})
		case k > 80:
			votes = append(votes, vote{1.0, -0.5})
		}
	}

	var sum, weight float64
	for _, v := range votes {
		sum += v.weight * v.value
		weight += v.weight
	}
	if weight == 0 {
		return 0
	}
	return clamp(sum/weight*1.5, -1, 1)
}

// confidence blends histogram magnitude relative to ATR, RSI neutrality,
// and trend strength with fixed weights.
func confidence(vals map[string][]float64, i int) float64 {
	hist := at(vals, "macd_hist", i)
	atr := at(vals, "atr", i)
	rsi := at(vals, "rsi", i)
	adx := at(vals, "adx", i)

	var momentum float64
	if !math.IsNaN(hist) && !math.IsNaN(atr) && atr > 0 {
		momentum = clamp(math.Abs(hist)/atr*10, 0, 1)
	}
	var neutrality float64
	if !math.IsNaN(rsi) {
		neutrality = 1 - math.Abs(rsi-50)/50
	}
	var strength float64
	if !math.IsNaN(adx) {
		strength = clamp(adx/50, 0, 1)
	}
	return clamp(0.4*momentum+0.3*neutrality+0.3*strength, 0, 1)
}

// volumeConfirmation blends normalized money flow with trend strength.
func volumeConfirmation(vals map[string][]float64, i int) float64 {
	mfi := at(vals, "mfi", i)
	adx := at(vals, "adx", i)

	var flow float64
	if !math.IsNaN(mfi) {
		flow = clamp(mfi/100, 0, 1)
	}
	var strength float64
	if !math.IsNaN(adx) {
		strength = clamp(adx/50, 0, 1)
	}
	return clamp(0.6*flow+0.4*strength, 0, 1)
}

// classify maps (score, confidence) through fixed thresholds to a tier.
// Only the four directional non-weak tiers set an actionable signal.
func classify(score, conf float64) (Tier, model.Signal, bool) {
	switch {
	case score >= 0.6 && conf >= 0.6:
		return TierStrongBuy, model.SignalLong, true
	case score >= 0.3 && conf >= 0.5:
		return TierBuy, model.SignalLong, true
	case score >= 0.1:
		return TierWeakBuy, model.SignalNone, false
	case score <= -0.6 && conf >= 0.6:
		return TierStrongSell, model.SignalShort, true
	case score <= -0.3 && conf >= 0.5:
		return TierSell, model.SignalShort, true
	case score <= -0.1:
		return TierWeakSell, model.SignalNone, false
	default:
		return TierNeutral, model.SignalNone, false
	}
}

// squeeze flags volatility contraction: latest band width materially
// below its trailing average.
func squeeze(vals map[string][]float64, i int) bool {
	width := func(j int) float64 {
		u, m, l := at(vals, "bb_upper", j), at(vals, "bb_middle", j), at(vals, "bb_lower", j)
		if math.IsNaN(u) || math.IsNaN(m) || math.IsNaN(l) || m == 0 {
			return math.NaN()
		}
		return (u - l) / m
	}

	latest := width(i)
	if math.IsNaN(latest) {
		return false
	}
	var sum float64
	var n int
	for j := i - squeezeLookback; j < i; j++ {
		if j < 0 {
			continue
		}
		if w := width(j); !math.IsNaN(w) {
			sum += w
			n++
		}
	}
	if n == 0 {
		return false
	}
	return latest < squeezeRatio*(sum/float64(n))
}

// snapshot captures the latest value of every basket output, rounded to
// four decimals, NaN entries omitted.
func snapshot(vals map[string][]float64, i int) map[string]float64 {
	out := make(map[string]float64, len(vals))
	for name, arr := range vals {
		if i < len(arr) && !math.IsNaN(arr[i]) {
			out[name] = math.Round(arr[i]*10000) / 10000
		}
	}
	return out
}

// PairResult is one market's analysis within a batch scan.
type PairResult struct {
	Key    string  `json:"key"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}

// ScanAll analyzes every series concurrently and joins the results,
// ordered by key. Per-pair computations share no mutable state, so the
// fan-out is a plain worker-per-pair.
func (s *Scorer) ScanAll(ctx context.Context, batch map[string]model.Series) []PairResult {
	out := make([]PairResult, 0, len(batch))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for key, series := range batch {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(key string, series model.Series) {
			defer wg.Done()
			res, err := s.Analyze(series)
			mu.Lock()
			out = append(out, PairResult{Key: key, Result: res, Err: err})
			mu.Unlock()
		}(key, series)
	}
	wg.Wait()
	sort.Slice(out, func(a, b int) bool { return out[a].Key < out[b].Key })
	return out
}

func at(vals map[string][]float64, name string, i int) float64 {
	arr, ok := vals[name]
	if !ok || i < 0 || i >= len(arr) {
		return math.NaN()
	}
	return arr[i]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
