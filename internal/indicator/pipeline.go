package indicator

import (
	"errors"
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"tradecore/internal/model"
)

// Compute resolves all definitions against an ascending candle series.
// Each result array is aligned 1:1 with the input candles; indices before the
// indicator's warm-up hold NaN. A series shorter than a warm-up window is not
// an error — the array is simply all-NaN ("no result yet").
func Compute(s model.Series, defs map[string]Definition) (map[string][]float64, error) {
	if len(s) == 0 {
		return nil, errors.New("indicator: empty candle series")
	}
	if err := s.ValidateAscending(); err != nil {
		return nil, err
	}

	n := len(s)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i := range s {
		closes[i] = s[i].Close
		highs[i] = s[i].High
		lows[i] = s[i].Low
		volumes[i] = s[i].Volume
	}

	out := make(map[string][]float64, len(defs))
	for name, def := range defs {
		if err := computeOne(out, name, def, closes, highs, lows, volumes); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func computeOne(out map[string][]float64, name string, def Definition, closes, highs, lows, volumes []float64) error {
	n := len(closes)

	switch def.Kind {
	case KindSMA, KindEMA, KindRSI, KindADX, KindMFI, KindCCI, KindATR:
		w, ok := def.Opts.(WindowOpts)
		if !ok {
			return optsError(name, def)
		}
		if w.Period < 2 {
			return fmt.Errorf("indicator %q: period %d too small", name, w.Period)
		}
		warmup := windowWarmup(def.Kind, w.Period)
		if n <= warmup {
			out[name] = allNaN(n)
			return nil
		}
		var vals []float64
		switch def.Kind {
		case KindSMA:
			vals = talib.Sma(closes, w.Period)
		case KindEMA:
			vals = talib.Ema(closes, w.Period)
		case KindRSI:
			vals = talib.Rsi(closes, w.Period)
		case KindADX:
			vals = talib.Adx(highs, lows, closes, w.Period)
		case KindMFI:
			vals = talib.Mfi(highs, lows, closes, volumes, w.Period)
		case KindCCI:
			vals = talib.Cci(highs, lows, closes, w.Period)
		case KindATR:
			vals = talib.Atr(highs, lows, closes, w.Period)
		}
		out[name] = maskWarmup(vals, warmup)

	case KindMACD:
		o, ok := def.Opts.(MACDOpts)
		if !ok {
			return optsError(name, def)
		}
		warmup := o.Slow + o.Signal - 2
		if n <= warmup {
			out[name] = allNaN(n)
			out[name+"_signal"] = allNaN(n)
			out[name+"_hist"] = allNaN(n)
			return nil
		}
		line, signal, hist := talib.Macd(closes, o.Fast, o.Slow, o.Signal)
		out[name] = maskWarmup(line, warmup)
		out[name+"_signal"] = maskWarmup(signal, warmup)
		out[name+"_hist"] = maskWarmup(hist, warmup)

	case KindBBands:
		o, ok := def.Opts.(BBandsOpts)
		if !ok {
			return optsError(name, def)
		}
		warmup := o.Period - 1
		if n <= warmup {
			out[name+"_upper"] = allNaN(n)
			out[name+"_middle"] = allNaN(n)
			out[name+"_lower"] = allNaN(n)
			return nil
		}
		upper, middle, lower := talib.BBands(closes, o.Period, o.StdDev, o.StdDev, talib.SMA)
		out[name+"_upper"] = maskWarmup(upper, warmup)
		out[name+"_middle"] = maskWarmup(middle, warmup)
		out[name+"_lower"] = maskWarmup(lower, warmup)

	case KindStoch:
		o, ok := def.Opts.(StochOpts)
		if !ok {
			return optsError(name, def)
		}
		warmup := o.FastK + o.SlowK + o.SlowD - 3
		if n <= warmup {
			out[name+"_k"] = allNaN(n)
			out[name+"_d"] = allNaN(n)
			return nil
		}
		k, d := talib.Stoch(highs, lows, closes, o.FastK, o.SlowK, talib.SMA, o.SlowD, talib.SMA)
		out[name+"_k"] = maskWarmup(k, warmup)
		out[name+"_d"] = maskWarmup(d, warmup)

	case KindOBV:
		out[name] = talib.Obv(closes, volumes)

	default:
		return fmt.Errorf("indicator %q: unknown kind %q", name, def.Kind)
	}
	return nil
}

// windowWarmup is the number of leading indices without a valid value, per
// kind, matching talib's lookback for that function.
func windowWarmup(kind Kind, period int) int {
	switch kind {
	case KindSMA, KindEMA, KindCCI:
		return period - 1
	case KindRSI, KindMFI, KindATR:
		return period
	case KindADX:
		return 2*period - 1
	default:
		return period
	}
}

// maskWarmup copies vals with the first warmup entries replaced by NaN.
// talib fills its lookback region with zeros, which are indistinguishable
// from legitimate values.
func maskWarmup(vals []float64, warmup int) []float64 {
	out := make([]float64, len(vals))
	copy(out, vals)
	if warmup > len(out) {
		warmup = len(out)
	}
	for i := 0; i < warmup; i++ {
		out[i] = math.NaN()
	}
	return out
}

func allNaN(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Ready reports whether the array holds a valid (non-NaN) value at index i.
func Ready(vals []float64, i int) bool {
	return i >= 0 && i < len(vals) && !math.IsNaN(vals[i])
}
