// Package backtest turns a signal-row trace into realized trades and
// summary statistics over a compounding capital curve.
package backtest

import (
	"fmt"
	"math"

	"tradecore/internal/model"
)

// riskReference is subtracted from the mean trade return in the
// risk-adjusted ratio. It is expressed in percent-per-trade like the
// returns themselves, which is dubious, but downstream consumers compare
// against histories computed with this exact constant, so it stays.
const riskReference = 3.0

// position is the simulator's single open position. No pyramiding: entry
// signals while positioned are ignored.
type position struct {
	side    model.Signal
	entryTS int64
	price   float64
}

// Simulate replays rows against initialCapital and returns the realized
// trade list plus summary statistics.
//
// Exactly one position can be open at a time. A close signal realizes the
// open trade and compounds capital; an entry signal opens a position only
// when flat. A position still open at series end is force-closed against
// the final row.
func Simulate(rows []model.SignalRow, initialCapital float64) ([]model.Trade, model.Summary, error) {
	if initialCapital <= 0 {
		return nil, model.Summary{}, fmt.Errorf("backtest: initial capital must be positive, got %v", initialCapital)
	}
	if len(rows) >= 2 && rows[0].TS > rows[1].TS {
		return nil, model.Summary{}, fmt.Errorf("backtest: %w", model.ErrNotAscending)
	}

	var (
		trades  []model.Trade
		pos     *position
		capital = initialCapital
		peak    = initialCapital
		maxDD   = 0.0
	)

	mark := func(equity float64) {
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak * 100; dd > maxDD {
			maxDD = dd
		}
	}

	realize := func(r model.SignalRow, forced bool) {
		pct := profitPct(pos.side, pos.price, r.Price)
		profit := capital * pct / 100
		trades = append(trades, model.Trade{
			EntryTS:     pos.entryTS,
			EntryPrice:  pos.price,
			ExitTS:      r.TS,
			ExitPrice:   r.Price,
			Side:        pos.side,
			ProfitPct:   pct,
			Profit:      profit,
			ForcedClose: forced,
		})
		capital *= 1 + pct/100
		pos = nil
		mark(capital)
	}

	for _, r := range rows {
		switch {
		case pos != nil && r.Signal == model.SignalClose:
			realize(r, false)
		case pos != nil:
			// Entry signals while positioned are ignored; still mark the
			// equity curve against the unrealized position.
			mark(capital * (1 + profitPct(pos.side, pos.price, r.Price)/100))
		case r.Signal == model.SignalLong || r.Signal == model.SignalShort:
			pos = &position{side: r.Signal, entryTS: r.TS, price: r.Price}
		}
	}

	if pos != nil && len(rows) > 0 {
		realize(rows[len(rows)-1], true)
	}

	return trades, summarize(trades, initialCapital, capital, maxDD), nil
}

// profitPct is side-correct: long gains when price rises, short when it
// falls.
func profitPct(side model.Signal, entry, price float64) float64 {
	if side == model.SignalShort {
		return (entry - price) / entry * 100
	}
	return (price - entry) / entry * 100
}

func summarize(trades []model.Trade, initial, final, maxDD float64) model.Summary {
	s := model.Summary{
		Trades:         len(trades),
		MaxDrawdownPct: maxDD,
		InitialCapital: initial,
		FinalCapital:   final,
	}
	if len(trades) == 0 {
		return s
	}

	var total float64
	for _, t := range trades {
		total += t.ProfitPct
		if t.ProfitPct > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	s.TotalProfitPct = total
	s.AvgProfitPct = total / float64(len(trades))
	s.WinRate = float64(s.Wins) / float64(len(trades)) * 100
	s.RiskRatio = riskRatio(trades, s.AvgProfitPct)
	return s
}

// riskRatio is (mean − riskReference) / stddev over trade returns, 0 when
// fewer than two trades exist or variance is zero.
func riskRatio(trades []model.Trade, mean float64) float64 {
	if len(trades) < 2 {
		return 0
	}
	var variance float64
	for _, t := range trades {
		d := t.ProfitPct - mean
		variance += d * d
	}
	variance /= float64(len(trades))
	if variance == 0 {
		return 0
	}
	return (mean - riskReference) / math.Sqrt(variance)
}
