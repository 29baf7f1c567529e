package domain

// Position is the ledger's record of an open holding. At most one Position
// exists per symbol; subsequent fills update size and entry price.
type Position struct {
	Symbol     string  `json:"symbol"`
	Size       float64 `json:"size"` // signed; negative is short
	EntryPrice float64 `json:"entry_price"`
	CurrentPnL float64 `json:"current_pnl"`
	RiskScore  float64 `json:"risk_score"`
}

// PositionLimits are the process-wide risk limits, loaded once at startup
// and immutable thereafter.
type PositionLimits struct {
	MaxPositionSize  float64 `json:"max_position_size"`
	MaxDailyLoss     float64 `json:"max_daily_loss"`
	MaxPortfolioRisk float64 `json:"max_portfolio_risk"`
	MaxCorrelation   float64 `json:"max_correlation"`
}
