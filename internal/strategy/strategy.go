// Package strategy defines the capability contract every trading strategy
// implements, plus the concrete strategy variants.
//
// A strategy is a pure function of (indicator history to date, current price,
// prior signal, price history) → at most one signal per step. No I/O, no
// state outside the context: the live and backtest paths must produce
// identical traces given identical candle history, which only holds if steps
// are deterministic and side-effect free.
package strategy

import (
	"fmt"
	"math"

	"tradecore/internal/indicator"
	"tradecore/internal/model"
)

// Strategy is the interface all trading strategies implement.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Indicators returns the named indicator requests this strategy needs.
	// Resolved once per run by the executor, never per step.
	Indicators() map[string]indicator.Definition

	// Step examines the context and calls at most one of OpenLong/OpenShort/
	// Close on the collector. Debug notes may be recorded whether or not a
	// signal fires. A returned error drops this step's signal; the run
	// continues.
	Step(ctx *Context, out *Collector) error
}

// Context is the per-step immutable snapshot handed to Step. Indicator
// arrays and price history are truncated to the current index — a step only
// ever sees information available as of now.
type Context struct {
	TS     int64
	Close  float64
	Last   model.Signal         // carried signal from the previous step
	Prices []float64            // close history [0..i]
	Values map[string][]float64 // indicator arrays [0..i]
}

// Value returns the latest value of a named indicator array, or NaN if the
// array is missing or still warming up.
func (c *Context) Value(name string) float64 {
	return c.at(name, 0)
}

// Prev returns the value one step back, or NaN.
func (c *Context) Prev(name string) float64 {
	return c.at(name, 1)
}

func (c *Context) at(name string, back int) float64 {
	arr, ok := c.Values[name]
	if !ok {
		return math.NaN()
	}
	i := len(arr) - 1 - back
	if i < 0 {
		return math.NaN()
	}
	return arr[i]
}

// Collector gathers the outcome of exactly one step: the signal decision plus
// debug annotations. It is created fresh per step and discarded afterward —
// never retained or shared. If a step calls more than one signal method the
// last call wins; emitting conflicting signals is a strategy-authoring bug.
type Collector struct {
	signal model.Signal
	debug  map[string]float64
}

// NewCollector returns an empty step-scoped collector.
func NewCollector() *Collector {
	return &Collector{debug: make(map[string]float64)}
}

// OpenLong records a long entry signal.
func (c *Collector) OpenLong() { c.signal = model.SignalLong }

// OpenShort records a short entry signal.
func (c *Collector) OpenShort() { c.signal = model.SignalShort }

// Close records a position close signal.
func (c *Collector) Close() { c.signal = model.SignalClose }

// Note records a debug annotation. NaN values are stored as-is; consumers
// filter what they need.
func (c *Collector) Note(key string, val float64) { c.debug[key] = val }

// Signal returns the recorded signal, SignalNone if nothing fired.
func (c *Collector) Signal() model.Signal { return c.signal }

// Debug returns the annotations recorded this step.
func (c *Collector) Debug() map[string]float64 { return c.debug }

// New builds a registered strategy by name with its default options.
func New(name string) (Strategy, error) {
	switch name {
	case "emacross", "":
		return NewEMACross(EMACrossConfig{}), nil
	case "macdhist":
		return NewMACDHist(MACDHistConfig{}), nil
	case "rsirevert":
		return NewRSIRevert(RSIRevertConfig{}), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// Names lists the registered strategy names.
func Names() []string {
	return []string{"emacross", "macdhist", "rsirevert"}
}
