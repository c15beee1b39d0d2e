package tascore

import "math"

// Divergence classifies price-versus-indicator disagreement.
type Divergence string

const (
	DivNone          Divergence = "none"
	DivBullish       Divergence = "bullish"
	DivBearish       Divergence = "bearish"
	DivHiddenBullish Divergence = "hidden_bullish"
	DivHiddenBearish Divergence = "hidden_bearish"
)

// divergenceWindow is how many trailing values each divergence check
// looks at.
const divergenceWindow = 30

// minSwings is the threshold below which the swing-point path falls back
// to plain windowed min/max comparison.
const minSwings = 2

// detectAll runs the three independent family checks: price against RSI,
// price against the MACD histogram, and money flow against RSI.
func detectAll(closes []float64, vals map[string][]float64) map[string]Divergence {
	return map[string]Divergence{
		"rsi":       detect(closes, vals["rsi"]),
		"macd_hist": detect(closes, vals["macd_hist"]),
		"mfi_rsi":   detect(vals["mfi"], vals["rsi"]),
	}
}

// detect compares recent versus older extremes of base against the
// same-window extremes of ind.
//
// The bearish checks run after the bullish ones and overwrite the result
// when both match within one call. Do not reorder: historical analyses
// were classified under this precedence.
func detect(base, ind []float64) Divergence {
	n := len(base)
	if len(ind) < n {
		n = len(ind)
	}
	if n < divergenceWindow {
		return DivNone
	}
	b := base[n-divergenceWindow : n]
	v := ind[n-divergenceWindow : n]

	lows := swingPoints(b, false)
	highs := swingPoints(b, true)
	if len(lows) < minSwings && len(highs) < minSwings {
		return windowedDetect(b, v)
	}

	result := DivNone
	if len(lows) >= minSwings {
		p1, p2 := lows[len(lows)-2], lows[len(lows)-1]
		if valid(b[p1], b[p2], v[p1], v[p2]) {
			if b[p2] < b[p1] && v[p2] > v[p1] {
				result = DivBullish
			}
			if b[p2] > b[p1] && v[p2] < v[p1] {
				result = DivHiddenBullish
			}
		}
	}
	if len(highs) >= minSwings {
		p1, p2 := highs[len(highs)-2], highs[len(highs)-1]
		if valid(b[p1], b[p2], v[p1], v[p2]) {
			if b[p2] > b[p1] && v[p2] < v[p1] {
				result = DivBearish
			}
			if b[p2] < b[p1] && v[p2] > v[p1] {
				result = DivHiddenBearish
			}
		}
	}
	return result
}

// windowedDetect is the fallback: split the window into older and recent
// halves and compare their plain min/max extremes.
func windowedDetect(b, v []float64) Divergence {
	half := len(b) / 2
	oldLo, oldHi := minMax(b[:half])
	newLo, newHi := minMax(b[half:])
	oldVLo, oldVHi := minMax(v[:half])
	newVLo, newVHi := minMax(v[half:])
	if math.IsNaN(oldLo) || math.IsNaN(newLo) || math.IsNaN(oldVLo) || math.IsNaN(newVLo) {
		return DivNone
	}

	result := DivNone
	if newLo < oldLo && newVLo > oldVLo {
		result = DivBullish
	}
	if newHi > oldHi && newVHi < oldVHi {
		result = DivBearish
	}
	return result
}

// swingPoints returns indices of local extrema: values strictly beyond
// both immediate neighbors.
func swingPoints(arr []float64, highs bool) []int {
	var out []int
	for i := 1; i < len(arr)-1; i++ {
		if math.IsNaN(arr[i-1]) || math.IsNaN(arr[i]) || math.IsNaN(arr[i+1]) {
			continue
		}
		if highs && arr[i] > arr[i-1] && arr[i] > arr[i+1] {
			out = append(out, i)
		}
		if !highs && arr[i] < arr[i-1] && arr[i] < arr[i+1] {
			out = append(out, i)
		}
	}
	return out
}

func valid(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

func minMax(arr []float64) (lo, hi float64) {
	lo, hi = math.NaN(), math.NaN()
	for _, v := range arr {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(lo) || v < lo {
			lo = v
		}
		if math.IsNaN(hi) || v > hi {
			hi = v
		}
	}
	return lo, hi
}
