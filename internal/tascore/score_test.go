package tascore

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/internal/model"
)

// waveSeries builds n candles oscillating around a rising base so every
// basket indicator has live values.
func waveSeries(n int) model.Series {
	s := make(model.Series, n)
	for i := 0; i < n; i++ {
		price := 100 + float64(i)*0.2 + 5*math.Sin(float64(i)/6)
		s[i] = model.Candle{
			Exchange: "binance", Symbol: "btcusdt", Period: "1h",
			TS:   1700000000 + int64(i)*3600,
			Open: price - 0.3, High: price + 1.2, Low: price - 1.2, Close: price,
			Volume: 50 + 10*math.Cos(float64(i)/4),
		}
	}
	return s
}

func TestAnalyzeTooFewCandles(t *testing.T) {
	s := New(nil)
	_, err := s.Analyze(waveSeries(MinCandles - 1))
	require.ErrorIs(t, err, model.ErrInsufficientData)
}

func TestAnalyzeRanges(t *testing.T) {
	s := New(nil)
	res, err := s.Analyze(waveSeries(150))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.Score, -1.0)
	assert.LessOrEqual(t, res.Score, 1.0)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
	assert.GreaterOrEqual(t, res.VolumeConf, 0.0)
	assert.LessOrEqual(t, res.VolumeConf, 1.0)

	assert.Contains(t, []Tier{
		TierStrongBuy, TierBuy, TierWeakBuy, TierNeutral,
		TierWeakSell, TierSell, TierStrongSell,
	}, res.Tier)

	require.NotEmpty(t, res.Snapshot)
	for name, v := range res.Snapshot {
		assert.False(t, math.IsNaN(v), "snapshot %s is NaN", name)
	}
	assert.Len(t, res.Divergences, 3)
}

func TestAnalyzeRejectsDescending(t *testing.T) {
	series := waveSeries(120)
	series[0], series[1] = series[1], series[0]
	_, err := New(nil).Analyze(series)
	require.ErrorIs(t, err, model.ErrNotAscending)
}

func TestClassifyTiers(t *testing.T) {
	cases := []struct {
		score, conf float64
		tier        Tier
		signal      model.Signal
		triggered   bool
	}{
		{0.8, 0.9, TierStrongBuy, model.SignalLong, true},
		{0.4, 0.6, TierBuy, model.SignalLong, true},
		{0.4, 0.2, TierWeakBuy, model.SignalNone, false},
		{0.15, 0.9, TierWeakBuy, model.SignalNone, false},
		{0.0, 0.9, TierNeutral, model.SignalNone, false},
		{-0.15, 0.9, TierWeakSell, model.SignalNone, false},
		{-0.4, 0.6, TierSell, model.SignalShort, true},
		{-0.8, 0.9, TierStrongSell, model.SignalShort, true},
	}
	for _, c := range cases {
		tier, sig, triggered := classify(c.score, c.conf)
		assert.Equal(t, c.tier, tier, "score=%v conf=%v", c.score, c.conf)
		assert.Equal(t, c.signal, sig, "score=%v conf=%v", c.score, c.conf)
		assert.Equal(t, c.triggered, triggered, "score=%v conf=%v", c.score, c.conf)
	}
}

func TestSqueezeFlag(t *testing.T) {
	// Trailing widths average W; latest sits under 0.75*W.
	vals := map[string][]float64{
		"bb_upper":  make([]float64, 25),
		"bb_middle": make([]float64, 25),
		"bb_lower":  make([]float64, 25),
	}
	for j := 0; j < 25; j++ {
		vals["bb_middle"][j] = 100
		vals["bb_upper"][j] = 105 // width 0.10
		vals["bb_lower"][j] = 95
	}
	i := 24
	vals["bb_upper"][i] = 103 // width 0.06 < 0.075
	vals["bb_lower"][i] = 97
	assert.True(t, squeeze(vals, i))

	// Width at 80% of the trailing average is not a squeeze.
	vals["bb_upper"][i] = 104
	vals["bb_lower"][i] = 96
	assert.False(t, squeeze(vals, i))
}

func TestConfidenceBlend(t *testing.T) {
	vals := map[string][]float64{
		"macd_hist": {0.5},
		"atr":       {1.0},
		"rsi":       {50},
		"adx":       {50},
	}
	// momentum 1 (clamped), neutrality 1, strength 1 -> full confidence.
	assert.InDelta(t, 1.0, confidence(vals, 0), 1e-9)

	vals["rsi"] = []float64{100}
	vals["adx"] = []float64{0}
	vals["macd_hist"] = []float64{0}
	assert.InDelta(t, 0.0, confidence(vals, 0), 1e-9)
}

func TestVoteScoreADXNeedsTrendRead(t *testing.T) {
	// Strong ADX with both EMAs still warming up must not cast a
	// directional vote on its own.
	vals := map[string][]float64{
		"adx":      {40},
		"ema_fast": {math.NaN()},
		"ema_slow": {math.NaN()},
	}
	assert.Zero(t, voteScore(vals, []float64{100}, 0))
}

func TestScanAllJoinsResults(t *testing.T) {
	s := New(nil)
	batch := map[string]model.Series{
		"binance:btcusdt:1h": waveSeries(150),
		"binance:ethusdt:1h": waveSeries(120),
		"binance:thin:1h":    waveSeries(10),
	}
	out := s.ScanAll(context.Background(), batch)
	require.Len(t, out, 3)

	// Joined results come back sorted by key.
	assert.Equal(t, "binance:btcusdt:1h", out[0].Key)
	assert.Equal(t, "binance:ethusdt:1h", out[1].Key)
	assert.Equal(t, "binance:thin:1h", out[2].Key)

	assert.NoError(t, out[0].Err)
	assert.NotNil(t, out[0].Result)
	assert.ErrorIs(t, out[2].Err, model.ErrInsufficientData)
	assert.Nil(t, out[2].Result)
}
