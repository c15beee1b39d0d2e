package strategy

import (
	"math"

	"tradecore/internal/indicator"
	"tradecore/internal/model"
)

// MACDHist trades MACD-histogram zero crosses.
//
// Histogram crossing above zero opens long (or closes a carried short);
// crossing below zero opens short (or closes a carried long). MinHist filters
// out crosses whose magnitude is below a noise threshold.
type MACDHist struct {
	cfg MACDHistConfig
}

// MACDHistConfig holds the strategy options. Zero values take defaults.
type MACDHistConfig struct {
	Fast    int     // default 12
	Slow    int     // default 26
	Signal  int     // default 9
	MinHist float64 // minimum |histogram| for a cross to count; default 0
}

// NewMACDHist creates the strategy, applying defaults for zero-valued options.
func NewMACDHist(cfg MACDHistConfig) *MACDHist {
	if cfg.Fast <= 0 {
		cfg.Fast = 12
	}
	if cfg.Slow <= 0 {
		cfg.Slow = 26
	}
	if cfg.Signal <= 0 {
		cfg.Signal = 9
	}
	return &MACDHist{cfg: cfg}
}

func (s *MACDHist) Name() string { return "macdhist" }

func (s *MACDHist) Indicators() map[string]indicator.Definition {
	return map[string]indicator.Definition{
		"macd": indicator.MACD(s.cfg.Fast, s.cfg.Slow, s.cfg.Signal),
	}
}

func (s *MACDHist) Step(ctx *Context, out *Collector) error {
	hist, prev := ctx.Value("macd_hist"), ctx.Prev("macd_hist")
	out.Note("macd_hist", hist)
	out.Note("macd_line", ctx.Value("macd"))

	if math.IsNaN(hist) || math.IsNaN(prev) {
		return nil
	}

	switch {
	case prev <= 0 && hist > 0 && hist >= s.cfg.MinHist:
		if ctx.Last == model.SignalShort {
			out.Close()
		} else if ctx.Last == model.SignalNone {
			out.OpenLong()
		}
	case prev >= 0 && hist < 0 && -hist >= s.cfg.MinHist:
		if ctx.Last == model.SignalLong {
			out.Close()
		} else if ctx.Last == model.SignalNone {
			out.OpenShort()
		}
	}
	return nil
}
