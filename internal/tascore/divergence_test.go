package tascore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// flatWindow returns a detection-window slice filled with v.
func flatWindow(v float64) []float64 {
	out := make([]float64, divergenceWindow)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestDetectBullishSwing(t *testing.T) {
	// Price makes lower lows while the indicator makes higher lows; the
	// highs stay equal on both so no bearish branch can overwrite.
	price := flatWindow(100)
	ind := flatWindow(50)
	price[5], price[15] = 90, 88
	ind[5], ind[15] = 30, 35
	price[10], price[20] = 110, 110
	ind[10], ind[20] = 70, 70

	assert.Equal(t, DivBullish, detect(price, ind))
}

func TestDetectHiddenBullishSwing(t *testing.T) {
	// Price higher low, indicator lower low.
	price := flatWindow(100)
	ind := flatWindow(50)
	price[5], price[15] = 88, 90
	ind[5], ind[15] = 35, 30
	price[10], price[20] = 110, 110
	ind[10], ind[20] = 70, 70

	assert.Equal(t, DivHiddenBullish, detect(price, ind))
}

func TestDetectBearishOverwritesBullish(t *testing.T) {
	// Construct a window where both a bullish low pattern and a bearish
	// high pattern match: the bearish branch runs last and wins.
	price := make([]float64, divergenceWindow)
	ind := make([]float64, divergenceWindow)
	for i := range price {
		price[i] = 100
		ind[i] = 50
	}
	// Lows at 5 and 15: price lower low, indicator higher low (bullish).
	price[5], price[15] = 90, 88
	ind[5], ind[15] = 30, 35
	// Highs at 10 and 20: price higher high, indicator lower high (bearish).
	price[10], price[20] = 110, 112
	ind[10], ind[20] = 70, 65

	assert.Equal(t, DivBearish, detect(price, ind))
}

func TestDetectShortWindow(t *testing.T) {
	assert.Equal(t, DivNone, detect(make([]float64, 10), make([]float64, 10)))
}

func TestWindowedFallbackBullish(t *testing.T) {
	// Monotonic ramps have no interior swing points, forcing the
	// windowed min/max fallback. Price falls while the indicator rises.
	price := make([]float64, divergenceWindow)
	ind := make([]float64, divergenceWindow)
	for i := range price {
		price[i] = 100 - float64(i)
		ind[i] = 30 + float64(i)
	}
	assert.Equal(t, DivBullish, detect(price, ind))
}

func TestWindowedFallbackNone(t *testing.T) {
	// Both rising together: higher highs and higher indicator highs.
	price := make([]float64, divergenceWindow)
	ind := make([]float64, divergenceWindow)
	for i := range price {
		price[i] = 100 + float64(i)
		ind[i] = 30 + float64(i)
	}
	assert.Equal(t, DivNone, detect(price, ind))
}

func TestSwingPoints(t *testing.T) {
	arr := []float64{1, 3, 2, 4, 1, 5, 3}
	assert.Equal(t, []int{2, 4}, swingPoints(arr, false))
	assert.Equal(t, []int{1, 3, 5}, swingPoints(arr, true))
}
