package model

// Trade is one matched entry/exit pair reconstructed by the backtest
// simulator. Immutable once recorded. Profit is expressed both as a percent
// of entry price and in capital units at the capital level it was realized at.
type Trade struct {
	EntryTS     int64   `json:"entry_ts"`
	EntryPrice  float64 `json:"entry_price"`
	ExitTS      int64   `json:"exit_ts"`
	ExitPrice   float64 `json:"exit_price"`
	Side        Signal  `json:"side"` // long or short
	ProfitPct   float64 `json:"profit_pct"`
	Profit      float64 `json:"profit"`
	ForcedClose bool    `json:"forced_close,omitempty"`
}

// Summary aggregates a backtest run. Derived purely from the trade list and
// the running capital curve; recomputed fresh per run.
type Summary struct {
	Trades         int     `json:"trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRate        float64 `json:"win_rate"`
	TotalProfitPct float64 `json:"total_profit_pct"`
	AvgProfitPct   float64 `json:"avg_profit_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	RiskRatio      float64 `json:"risk_ratio"`
	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
}
