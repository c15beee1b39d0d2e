package model

// Signal is a trading decision emitted by a strategy step.
type Signal string

const (
	SignalNone  Signal = ""
	SignalLong  Signal = "long"
	SignalShort Signal = "short"
	SignalClose Signal = "close"
)

// SignalRow is the canonical per-candle trace record: the executor emits
// exactly one per input candle, signal or not. Debug carries the strategy's
// indicator readouts for observability and the AI-filter snapshot.
type SignalRow struct {
	TS     int64              `json:"ts"`
	Price  float64            `json:"price"`
	Signal Signal             `json:"signal,omitempty"`
	Debug  map[string]float64 `json:"debug,omitempty"`
}
