package models

import "github.com/shopspring/decimal"

// FeeDetail is the commission and fees charged on one opening or exit.
type FeeDetail struct {
	PositionID int64           `json:"position_id"`
	Date       string          `json:"date"`
	Symbol     string          `json:"symbol"`
	Category   string          `json:"category"` // "Open" or "Exit"
	Commission decimal.Decimal `json:"commission"`
	Fees       decimal.Decimal `json:"fees"`
	Total      decimal.Decimal `json:"total"`
}

// FeeSummary aggregates fee details.
type FeeSummary struct {
	TotalCommission decimal.Decimal            `json:"total_commission"`
	TotalFees       decimal.Decimal            `json:"total_fees"`
	Total           decimal.Decimal            `json:"total"`
	ByYear          map[string]decimal.Decimal `json:"by_year"`
}

// FeeReport is the response body of the fee endpoint.
type FeeReport struct {
	Details []FeeDetail `json:"details"`
	Summary FeeSummary  `json:"summary"`
}
