// backend/src/parsers/parser.go
package parsers

import (
	"io"

	"github.com/username/tradejournal/backend/src/models"
)

type ParseResult = models.ParseResult

var (
	ErrEmptyInput     = models.ErrEmptyInput
	ErrNoParsableRows = models.ErrNoParsableRows
)

// Parser turns a brokerage export into classified trade rows.
// Row-level problems are returned in ParseResult.Issues; the error is reserved for
// input that is empty or that yields no trade row at all.
type Parser interface {
	Parse(file io.Reader) (ParseResult, error)
}
