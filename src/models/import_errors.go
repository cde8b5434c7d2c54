package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// RowParseError reports a field that could not be read from a row.
type RowParseError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *RowParseError) Error() string {
	if e.Value == "" && e.Err != nil {
		return fmt.Sprintf("line %d: invalid %s: %v", e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("line %d: invalid %s %q: %v", e.Line, e.Field, e.Value, e.Err)
}

func (e *RowParseError) Unwrap() error { return e.Err }

// SymbolClassificationError is returned when an option description carries a symbol
// that does not decode as an option code.
type SymbolClassificationError struct {
	Line        int
	Symbol      string
	Description string
	Reason      string
}

func (e *SymbolClassificationError) Error() string {
	msg := fmt.Sprintf("line %d: symbol %q described as an option (%q) does not match the option code format", e.Line, e.Symbol, e.Description)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// OrphanedExitError is a closing row with no open position for its instrument.
type OrphanedExitError struct {
	Line int
	Key  InstrumentKey
	Date string
}

func (e *OrphanedExitError) Error() string {
	return fmt.Sprintf("line %d: closing trade for %s on %s has no open position", e.Line, e.Key, e.Date)
}

// ExitExceedsRemainingError is a closing row larger than what is left open.
type ExitExceedsRemainingError struct {
	Line      int
	Key       InstrumentKey
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *ExitExceedsRemainingError) Error() string {
	return fmt.Sprintf("line %d: closing %s of %s exceeds the remaining %s", e.Line, e.Requested, e.Key, e.Remaining)
}

// ReopenWhileOpenError is an opening row for an instrument that already has an open position.
type ReopenWhileOpenError struct {
	Line             int
	Key              InstrumentKey
	ExistingOpenDate string
}

func (e *ReopenWhileOpenError) Error() string {
	return fmt.Sprintf("line %d: %s already has a position open since %s", e.Line, e.Key, e.ExistingOpenDate)
}

// IssueKind names the category of a non-fatal import problem.
type IssueKind string

const (
	IssueRowParse             IssueKind = "ROW_PARSE"
	IssueSymbolClassification IssueKind = "SYMBOL_CLASSIFICATION"
	IssueOrphanedExit         IssueKind = "ORPHANED_EXIT"
	IssueExitExceedsRemaining IssueKind = "EXIT_EXCEEDS_REMAINING"
	IssueReopenWhileOpen      IssueKind = "REOPEN_WHILE_OPEN"
	IssueOther                IssueKind = "OTHER"
)

// ImportIssue is the user-facing record of a rejected row.
type ImportIssue struct {
	Line    int       `json:"line"`
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// NewImportIssue classifies err into an ImportIssue.
func NewImportIssue(err error) ImportIssue {
	issue := ImportIssue{Kind: IssueOther, Message: err.Error(), Err: err}

	var rowErr *RowParseError
	var symErr *SymbolClassificationError
	var orphanErr *OrphanedExitError
	var exceedErr *ExitExceedsRemainingError
	var reopenErr *ReopenWhileOpenError

	switch {
	case errors.As(err, &rowErr):
		issue.Kind, issue.Line = IssueRowParse, rowErr.Line
	case errors.As(err, &symErr):
		issue.Kind, issue.Line = IssueSymbolClassification, symErr.Line
	case errors.As(err, &orphanErr):
		issue.Kind, issue.Line = IssueOrphanedExit, orphanErr.Line
	case errors.As(err, &exceedErr):
		issue.Kind, issue.Line = IssueExitExceedsRemaining, exceedErr.Line
	case errors.As(err, &reopenErr):
		issue.Kind, issue.Line = IssueReopenWhileOpen, reopenErr.Line
	}
	return issue
}

// Fatal parse outcomes. Every other problem is reported per row as an ImportIssue.
var (
	ErrEmptyInput     = errors.New("the file contains no transaction rows")
	ErrNoParsableRows = errors.New("none of the rows in the file could be parsed as trades")
)
