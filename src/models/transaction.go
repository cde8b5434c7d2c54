package models

import "github.com/shopspring/decimal"

// PositionStatus is always derived from quantities, see DeriveStatus.
type PositionStatus string

const (
	StatusOpen            PositionStatus = "OPEN"
	StatusPartiallyClosed PositionStatus = "PARTIALLY_CLOSED"
	StatusClosed          PositionStatus = "CLOSED"
)

// DeriveStatus computes the lifecycle state of a position from its opening and remaining quantities.
func DeriveStatus(openQuantity, remaining decimal.Decimal) PositionStatus {
	switch {
	case remaining.Sign() <= 0:
		return StatusClosed
	case remaining.LessThan(openQuantity):
		return StatusPartiallyClosed
	default:
		return StatusOpen
	}
}

// ValidStatus reports whether s names one of the three lifecycle states.
func ValidStatus(s string) bool {
	switch PositionStatus(s) {
	case StatusOpen, StatusPartiallyClosed, StatusClosed:
		return true
	}
	return false
}

// Exit is one closing slice applied to a position.
type Exit struct {
	ID         int64           `json:"id,omitempty"`
	Date       string          `json:"date"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Commission decimal.Decimal `json:"commission"`
	Fees       decimal.Decimal `json:"fees"`
	PnL        decimal.Decimal `json:"pnl"`
	PnLPercent decimal.Decimal `json:"pnl_percent"`
	SourceLine int             `json:"source_line,omitempty"`
}

// Position is an opening transaction together with the exits matched against it.
// RemainingQuantity always equals OpenQuantity minus the summed exit quantities.
type Position struct {
	ID                int64           `json:"id,omitempty"`
	UserID            int64           `json:"-"`
	Instrument        InstrumentKey   `json:"instrument"`
	Direction         Direction       `json:"direction"`
	OpenDate          string          `json:"open_date"`
	OpenAction        string          `json:"open_action"`
	OpenQuantity      decimal.Decimal `json:"open_quantity"`
	OpenPrice         decimal.Decimal `json:"open_price"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	Commission        decimal.Decimal `json:"commission"`
	Fees              decimal.Decimal `json:"fees"`
	AccountType       string          `json:"account_type"`
	Description       string          `json:"description"`
	Exits             []Exit          `json:"exits"`
	Status            PositionStatus  `json:"status"`
	RealizedPnL       decimal.Decimal `json:"realized_pnl"`
	Notes             string          `json:"notes"`
	Tags              []string        `json:"tags"`
	SourceLine        int             `json:"source_line,omitempty"`
	Sequence          int             `json:"-"` // Ordering tiebreaker within one reconciliation
}

// ExitedQuantity sums the quantity of all exits.
func (p Position) ExitedQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, e := range p.Exits {
		total = total.Add(e.Quantity)
	}
	return total
}

// LastExitDate returns the date of the latest exit, or "" when there is none.
func (p Position) LastExitDate() string {
	last := ""
	for _, e := range p.Exits {
		if e.Date > last {
			last = e.Date
		}
	}
	return last
}
