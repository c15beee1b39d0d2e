package strategy

import (
	"math"

	"tradecore/internal/indicator"
	"tradecore/internal/model"
)

// RSIRevert is a long-only mean-reversion strategy: enter when RSI dips out
// of the oversold band, exit when RSI reaches the overbought band.
type RSIRevert struct {
	cfg RSIRevertConfig
}

// RSIRevertConfig holds the strategy options. Zero values take defaults.
type RSIRevertConfig struct {
	Period     int     // default 14
	Oversold   float64 // default 30
	Overbought float64 // default 70
}

// NewRSIRevert creates the strategy, applying defaults for zero-valued options.
func NewRSIRevert(cfg RSIRevertConfig) *RSIRevert {
	if cfg.Period <= 0 {
		cfg.Period = 14
	}
	if cfg.Oversold == 0 {
		cfg.Oversold = 30
	}
	if cfg.Overbought == 0 {
		cfg.Overbought = 70
	}
	return &RSIRevert{cfg: cfg}
}

func (s *RSIRevert) Name() string { return "rsirevert" }

func (s *RSIRevert) Indicators() map[string]indicator.Definition {
	return map[string]indicator.Definition{
		"rsi": indicator.RSI(s.cfg.Period),
	}
}

func (s *RSIRevert) Step(ctx *Context, out *Collector) error {
	rsi, prev := ctx.Value("rsi"), ctx.Prev("rsi")
	out.Note("rsi", rsi)

	if math.IsNaN(rsi) || math.IsNaN(prev) {
		return nil
	}

	// Entry on the way back up out of the oversold band, not while falling
	// into it.
	if ctx.Last == model.SignalNone && prev < s.cfg.Oversold && rsi >= s.cfg.Oversold {
		out.OpenLong()
		return nil
	}
	if ctx.Last == model.SignalLong && rsi >= s.cfg.Overbought {
		out.Close()
	}
	return nil
}
