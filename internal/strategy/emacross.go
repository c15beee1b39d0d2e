package strategy

import (
	"math"

	"tradecore/internal/indicator"
	"tradecore/internal/model"
)

// EMACross implements a fast/slow EMA crossover strategy.
//
// Long signal: fast EMA crosses above slow EMA (golden cross)
// Short signal: fast EMA crosses below slow EMA (death cross)
// A cross against the carried position closes it instead of reversing.
//
// Optional RSI filter prevents entering long when overbought or entering
// short when oversold.
type EMACross struct {
	cfg EMACrossConfig
}

// EMACrossConfig holds the strategy options. Zero values take defaults.
type EMACrossConfig struct {
	FastPeriod int     // default 9
	SlowPeriod int     // default 21
	RSIPeriod  int     // default 14; 0 after defaulting disables the filter — use RSIOff
	RSIOff     bool    // disable the RSI filter entirely
	Overbought float64 // default 70
	Oversold   float64 // default 30
}

// NewEMACross creates the strategy, applying defaults for zero-valued options.
func NewEMACross(cfg EMACrossConfig) *EMACross {
	if cfg.FastPeriod <= 0 {
		cfg.FastPeriod = 9
	}
	if cfg.SlowPeriod <= 0 {
		cfg.SlowPeriod = 21
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = 14
	}
	if cfg.Overbought == 0 {
		cfg.Overbought = 70
	}
	if cfg.Oversold == 0 {
		cfg.Oversold = 30
	}
	return &EMACross{cfg: cfg}
}

func (s *EMACross) Name() string { return "emacross" }

func (s *EMACross) Indicators() map[string]indicator.Definition {
	return map[string]indicator.Definition{
		"ema_fast": indicator.EMA(s.cfg.FastPeriod),
		"ema_slow": indicator.EMA(s.cfg.SlowPeriod),
		"rsi":      indicator.RSI(s.cfg.RSIPeriod),
	}
}

func (s *EMACross) Step(ctx *Context, out *Collector) error {
	fast, slow := ctx.Value("ema_fast"), ctx.Value("ema_slow")
	prevFast, prevSlow := ctx.Prev("ema_fast"), ctx.Prev("ema_slow")
	rsi := ctx.Value("rsi")

	out.Note("ema_fast", fast)
	out.Note("ema_slow", slow)
	out.Note("rsi", rsi)

	if math.IsNaN(fast) || math.IsNaN(slow) || math.IsNaN(prevFast) || math.IsNaN(prevSlow) {
		return nil // warm-up
	}

	crossUp := prevFast <= prevSlow && fast > slow
	crossDown := prevFast >= prevSlow && fast < slow

	switch {
	case crossUp:
		if ctx.Last == model.SignalShort {
			out.Close()
			return nil
		}
		if ctx.Last == model.SignalNone && s.rsiAllowsLong(rsi) {
			out.OpenLong()
		}
	case crossDown:
		if ctx.Last == model.SignalLong {
			out.Close()
			return nil
		}
		if ctx.Last == model.SignalNone && s.rsiAllowsShort(rsi) {
			out.OpenShort()
		}
	}
	return nil
}

func (s *EMACross) rsiAllowsLong(rsi float64) bool {
	return s.cfg.RSIOff || math.IsNaN(rsi) || rsi <= s.cfg.Overbought
}

func (s *EMACross) rsiAllowsShort(rsi float64) bool {
	return s.cfg.RSIOff || math.IsNaN(rsi) || rsi >= s.cfg.Oversold
}
