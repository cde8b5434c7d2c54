package models

import "github.com/shopspring/decimal"

// EquityPoint is the realized P&L booked on one day and the running total after it.
type EquityPoint struct {
	Date       string          `json:"date"`
	PnL        decimal.Decimal `json:"pnl"`
	Cumulative decimal.Decimal `json:"cumulative"`
}

// MonthlyPnL is realized P&L grouped by exit month (YYYY-MM).
type MonthlyPnL struct {
	Month string          `json:"month"`
	PnL   decimal.Decimal `json:"pnl"`
	Exits int             `json:"exits"`
}

// DashboardMetrics summarizes a user's journal.
type DashboardMetrics struct {
	TotalPositions           int `json:"total_positions"`
	OpenPositions            int `json:"open_positions"`
	PartiallyClosedPositions int `json:"partially_closed_positions"`
	ClosedPositions          int `json:"closed_positions"`

	TotalRealizedPnL decimal.Decimal     `json:"total_realized_pnl"`
	WinningTrades    int                 `json:"winning_trades"`
	LosingTrades     int                 `json:"losing_trades"`
	WinRatio         decimal.Decimal     `json:"win_ratio"` // Percent of closed positions with a positive result
	AverageWin       decimal.Decimal     `json:"average_win"`
	AverageLoss      decimal.Decimal     `json:"average_loss"`
	ProfitFactor     decimal.NullDecimal `json:"profit_factor"` // null when there are no losses
	LargestWin       decimal.Decimal     `json:"largest_win"`
	LargestLoss      decimal.Decimal     `json:"largest_loss"`
	ConsistencyScore decimal.Decimal     `json:"consistency_score"` // Percent of months with positive P&L

	MaxDrawdown        decimal.Decimal `json:"max_drawdown"`
	MaxDrawdownPercent decimal.Decimal `json:"max_drawdown_percent"`

	EquityCurve []EquityPoint `json:"equity_curve"`
	MonthlyPnL  []MonthlyPnL  `json:"monthly_pnl"`
}
