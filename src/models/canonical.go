package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InstrumentType distinguishes equity rows from option contracts.
type InstrumentType string

const (
	InstrumentStock  InstrumentType = "stock"
	InstrumentOption InstrumentType = "option"
)

// OptionRight is the call/put side of an option contract.
type OptionRight string

const (
	RightCall OptionRight = "call"
	RightPut  OptionRight = "put"
)

// Direction is +1 for long positions and -1 for short ones.
type Direction int

const (
	Long  Direction = 1
	Short Direction = -1
)

func (d Direction) Decimal() decimal.Decimal {
	if d == Short {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

func (d Direction) String() string {
	if d == Short {
		return "short"
	}
	return "long"
}

// InstrumentKey identifies a position lineage. Two rows with equal keys belong to the same lineage.
type InstrumentKey struct {
	Symbol     string          `json:"symbol"` // Ticker, or the underlying for options
	Type       InstrumentType  `json:"instrument_type"`
	Right      OptionRight     `json:"option_right,omitempty"`
	Strike     decimal.Decimal `json:"strike,omitzero"`
	Expiration string          `json:"expiration,omitempty"` // YYYY-MM-DD
}

// Key returns a string usable as a map key. Strikes are normalized so 575 and 575.0 collide.
func (k InstrumentKey) Key() string {
	if k.Type != InstrumentOption {
		return k.Symbol
	}
	return fmt.Sprintf("%s|%s|%s|%s", k.Symbol, k.Right, k.Strike.String(), k.Expiration)
}

func (k InstrumentKey) String() string {
	if k.Type != InstrumentOption {
		return k.Symbol
	}
	return fmt.Sprintf("%s %s %s %s", k.Symbol, k.Expiration, k.Strike.String(), k.Right)
}

// TransactionRow is one trade line of a brokerage export after parsing and classification.
// It is never modified after the parser returns it.
type TransactionRow struct {
	Line        int             `json:"line"`         // 1-based line number in the source file
	Raw         string          `json:"-"`            // Original line text
	Hash        string          `json:"hash"`         // Duplicate-detection hash, see processors.TransactionProcessor
	Date        string          `json:"date"`         // Trade date, YYYY-MM-DD
	Action      string          `json:"action"`       // e.g. "YOU BOUGHT OPENING TRANSACTION"
	Symbol      string          `json:"symbol"`       // Raw symbol as exported
	Description string          `json:"description"`  // Security description
	AccountType string          `json:"account_type"` // Cash, Margin, ...
	Quantity    decimal.Decimal `json:"quantity"`     // Signed as exported
	Price       decimal.Decimal `json:"price"`
	Commission  decimal.Decimal `json:"commission"`
	Fees        decimal.Decimal `json:"fees"`
	Amount      decimal.Decimal `json:"amount"` // Net cash amount

	Key       InstrumentKey `json:"key"`
	Opening   bool          `json:"opening"`
	Direction Direction     `json:"direction"`
}

// ParseResult is what a brokerage parser produces from one file.
type ParseResult struct {
	Rows        []TransactionRow `json:"rows"`
	Issues      []ImportIssue    `json:"issues"`
	SkippedRows int              `json:"skipped_rows"` // Non-trade rows and preamble/footer lines
}
