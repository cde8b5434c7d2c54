package models

import "github.com/shopspring/decimal"

// PricePoint is one daily close.
type PricePoint struct {
	Date  string          `json:"date"` // YYYY-MM-DD
	Close decimal.Decimal `json:"close"`
}

// PositionValuation marks an open equity position to the latest known price.
type PositionValuation struct {
	PositionID        int64           `json:"position_id"`
	Symbol            string          `json:"symbol"`
	Direction         Direction       `json:"direction"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	OpenPrice         decimal.Decimal `json:"open_price"`
	CostBasis         decimal.Decimal `json:"cost_basis"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	MarketValue       decimal.Decimal `json:"market_value"`
	UnrealizedPnL     decimal.Decimal `json:"unrealized_pnl"`
	Status            string          `json:"status"` // OK, UNAVAILABLE
}

// StockAnalysis holds technical figures computed from a daily price history.
type StockAnalysis struct {
	Ticker              string              `json:"ticker"`
	LastClose           decimal.Decimal     `json:"last_close"`
	LastDate            string              `json:"last_date"`
	High52Week          decimal.Decimal     `json:"high_52_week"`
	Low52Week           decimal.Decimal     `json:"low_52_week"`
	SMA50               decimal.NullDecimal `json:"sma_50"`
	SMA200              decimal.NullDecimal `json:"sma_200"`
	ChangeOneYearPct    decimal.NullDecimal `json:"change_1y_pct"`
	DistanceFromHighPct decimal.Decimal     `json:"distance_from_high_pct"`
	DataPoints          int                 `json:"data_points"`
}
