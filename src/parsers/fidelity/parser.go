// backend/src/parsers/fidelity/parser.go
package fidelity

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradejournal/backend/src/models"
)

const minColumns = 11

// RawTransaction holds the direct string values from a single row of a Fidelity export.
type RawTransaction struct {
	Date, Action, Symbol, Description, AccountType, Quantity, Price, Commission, Fees, AccruedInterest, Amount string
	Line                                                                                                       int
	RawLine                                                                                                    string
}

// FidelityParser implements the parsers.Parser interface for Fidelity account history exports.
type FidelityParser struct{}

// NewParser creates a new instance of the FidelityParser.
func NewParser() *FidelityParser {
	return &FidelityParser{}
}

// Parse reads a tab- or comma-delimited export and returns the trade rows it contains.
func (p *FidelityParser) Parse(file io.Reader) (models.ParseResult, error) {
	result := models.ParseResult{}

	content, err := io.ReadAll(file)
	if err != nil {
		return result, fmt.Errorf("fidelity parser: failed to read input: %w", err)
	}
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	delimiter := detectDelimiter(lines)

	dataLines := 0
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lineNo := i + 1

		fields, err := splitLine(line, delimiter)
		if err != nil {
			dataLines++
			result.Issues = append(result.Issues, models.NewImportIssue(&models.RowParseError{Line: lineNo, Field: "row", Err: err}))
			continue
		}
		if isHeader(fields) {
			continue
		}
		dataLines++

		if len(fields) < minColumns {
			if _, ok := parseDate(fields[0]); ok {
				result.Issues = append(result.Issues, models.NewImportIssue(&models.RowParseError{
					Line: lineNo, Field: "row", Err: fmt.Errorf("expected %d columns, got %d", minColumns, len(fields)),
				}))
			} else {
				// Preamble or footer text
				result.SkippedRows++
			}
			continue
		}

		raw := RawTransaction{
			Date:            fields[0],
			Action:          fields[1],
			Symbol:          fields[2],
			Description:     fields[3],
			AccountType:     fields[4],
			Quantity:        fields[5],
			Price:           fields[6],
			Commission:      fields[7],
			Fees:            fields[8],
			AccruedInterest: fields[9],
			Amount:          fields[10],
			Line:            lineNo,
			RawLine:         strings.TrimRight(line, "\r"),
		}

		if !isTradeAction(raw.Action) {
			result.SkippedRows++
			continue
		}

		row, err := toTransactionRow(raw)
		if err != nil {
			result.Issues = append(result.Issues, models.NewImportIssue(err))
			continue
		}
		result.Rows = append(result.Rows, row)
	}

	if dataLines == 0 {
		return result, models.ErrEmptyInput
	}
	if len(result.Rows) == 0 {
		return result, models.ErrNoParsableRows
	}
	return result, nil
}

// detectDelimiter picks tab when the first non-blank line contains one, comma otherwise.
func detectDelimiter(lines []string) rune {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Contains(line, "\t") {
			return '\t'
		}
		return ','
	}
	return ','
}

func splitLine(line string, delimiter rune) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // Allow variable number of fields per record

	record, err := reader.Read()
	if err != nil {
		return nil, err
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}
	return record, nil
}

func isHeader(fields []string) bool {
	return len(fields) > 0 && strings.Contains(strings.ToLower(fields[0]), "date")
}

func isTradeAction(action string) bool {
	upper := strings.ToUpper(action)
	return strings.Contains(upper, "BOUGHT") || strings.Contains(upper, "SOLD") || isExpiration(upper)
}

func isExpiration(upperAction string) bool {
	return strings.Contains(upperAction, "EXPIRED")
}

func toTransactionRow(raw RawTransaction) (models.TransactionRow, error) {
	row := models.TransactionRow{
		Line:        raw.Line,
		Raw:         raw.RawLine,
		Action:      raw.Action,
		Symbol:      raw.Symbol,
		Description: raw.Description,
		AccountType: raw.AccountType,
	}

	date, ok := parseDate(raw.Date)
	if !ok {
		return row, &models.RowParseError{Line: raw.Line, Field: "date", Value: raw.Date, Err: errors.New("expected MM/DD/YYYY or YYYY-MM-DD")}
	}
	row.Date = date.Format("2006-01-02")

	var err error
	if row.Quantity, err = parseRequired(raw.Line, "quantity", raw.Quantity); err != nil {
		return row, err
	}
	if row.Quantity.IsZero() {
		return row, &models.RowParseError{Line: raw.Line, Field: "quantity", Value: raw.Quantity, Err: errors.New("quantity must not be zero")}
	}

	upperAction := strings.ToUpper(raw.Action)
	if isExpiration(upperAction) && strings.TrimSpace(raw.Price) == "" {
		row.Price = decimal.Zero
	} else if row.Price, err = parseRequired(raw.Line, "price", raw.Price); err != nil {
		return row, err
	}
	if row.Commission, err = parseOptional(raw.Line, "commission", raw.Commission); err != nil {
		return row, err
	}
	if row.Fees, err = parseOptional(raw.Line, "fees", raw.Fees); err != nil {
		return row, err
	}
	if row.Amount, err = parseOptional(raw.Line, "amount", raw.Amount); err != nil {
		return row, err
	}

	key, err := ClassifySymbol(raw.Symbol, raw.Description)
	if err != nil {
		var symErr *models.SymbolClassificationError
		if errors.As(err, &symErr) {
			symErr.Line = raw.Line
		}
		return row, err
	}
	row.Key = key

	row.Opening = strings.Contains(upperAction, "OPENING TRANSACTION")
	row.Direction = models.Short
	if strings.Contains(upperAction, "BOUGHT") {
		row.Direction = models.Long
	}
	return row, nil
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"1/2/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeDecimalString strips currency symbols, thousands separators and blanks,
// and turns accounting parentheses into a leading minus.
func normalizeDecimalString(s string) string {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.Trim(cleaned, "\"")
	cleaned = strings.NewReplacer("$", "", ",", "", " ", "").Replace(cleaned)

	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + strings.TrimSuffix(strings.TrimPrefix(cleaned, "("), ")")
	}
	cleaned = strings.TrimPrefix(cleaned, "+")
	return cleaned
}

func parseRequired(line int, field, value string) (decimal.Decimal, error) {
	cleaned := normalizeDecimalString(value)
	if cleaned == "" {
		return decimal.Zero, &models.RowParseError{Line: line, Field: field, Value: value, Err: errors.New("value is required")}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &models.RowParseError{Line: line, Field: field, Value: value, Err: errors.New("not a number")}
	}
	return d, nil
}

func parseOptional(line int, field, value string) (decimal.Decimal, error) {
	if normalizeDecimalString(value) == "" {
		return decimal.Zero, nil
	}
	return parseRequired(line, field, value)
}
