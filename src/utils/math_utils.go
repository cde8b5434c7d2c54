package utils

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// PercentOf returns part/whole*100 rounded to places, or zero when whole is zero.
func PercentOf(part, whole decimal.Decimal, places int32) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, places)
}

// SumDecimals adds all values.
func SumDecimals(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
