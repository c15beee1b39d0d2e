// Package indicator resolves named indicator requests into per-candle-aligned
// value arrays. The numeric math itself is delegated to go-talib; this
// package owns the request model, warm-up masking, and output naming.
//
// Every returned array has exactly one value per candle index. Indices before
// an indicator's warm-up window hold math.NaN() and are never recomputed
// retroactively.
package indicator

import "fmt"

// Kind identifies an indicator family.
type Kind string

const (
	KindSMA    Kind = "sma"
	KindEMA    Kind = "ema"
	KindRSI    Kind = "rsi"
	KindMACD   Kind = "macd"
	KindBBands Kind = "bbands"
	KindStoch  Kind = "stoch"
	KindADX    Kind = "adx"
	KindMFI    Kind = "mfi"
	KindCCI    Kind = "cci"
	KindATR    Kind = "atr"
	KindOBV    Kind = "obv"
)

// Definition is one named indicator request: a kind plus its option struct.
// Definitions are resolved once per run, not reinterpreted per step.
type Definition struct {
	Kind Kind
	Opts any
}

// WindowOpts configures single-window kinds (SMA, EMA, RSI, ADX, MFI, CCI, ATR).
type WindowOpts struct {
	Period int
}

// MACDOpts configures MACD fast/slow/signal periods.
type MACDOpts struct {
	Fast   int
	Slow   int
	Signal int
}

// BBandsOpts configures Bollinger bands: SMA window and deviation multiplier.
type BBandsOpts struct {
	Period int
	StdDev float64
}

// StochOpts configures the slow stochastic oscillator.
type StochOpts struct {
	FastK int
	SlowK int
	SlowD int
}

// SMA requests a simple moving average over period candles.
func SMA(period int) Definition { return Definition{KindSMA, WindowOpts{period}} }

// EMA requests an exponential moving average over period candles.
func EMA(period int) Definition { return Definition{KindEMA, WindowOpts{period}} }

// RSI requests a relative strength index over period candles.
func RSI(period int) Definition { return Definition{KindRSI, WindowOpts{period}} }

// MACD requests MACD line, signal and histogram. The result expands into
// three arrays: name, name+"_signal", name+"_hist".
func MACD(fast, slow, signal int) Definition {
	return Definition{KindMACD, MACDOpts{fast, slow, signal}}
}

// BBands requests Bollinger bands, expanding into name+"_upper",
// name+"_middle", name+"_lower".
func BBands(period int, stdDev float64) Definition {
	return Definition{KindBBands, BBandsOpts{period, stdDev}}
}

// Stoch requests the slow stochastic, expanding into name+"_k", name+"_d".
func Stoch(fastK, slowK, slowD int) Definition {
	return Definition{KindStoch, StochOpts{fastK, slowK, slowD}}
}

// ADX requests the average directional index over period candles.
func ADX(period int) Definition { return Definition{KindADX, WindowOpts{period}} }

// MFI requests the money flow index over period candles.
func MFI(period int) Definition { return Definition{KindMFI, WindowOpts{period}} }

// CCI requests the commodity channel index over period candles.
func CCI(period int) Definition { return Definition{KindCCI, WindowOpts{period}} }

// ATR requests the average true range over period candles.
func ATR(period int) Definition { return Definition{KindATR, WindowOpts{period}} }

// OBV requests on-balance volume (no options, no warm-up).
func OBV() Definition { return Definition{KindOBV, nil} }

func optsError(name string, def Definition) error {
	return fmt.Errorf("indicator %q: kind %s given option type %T", name, def.Kind, def.Opts)
}
