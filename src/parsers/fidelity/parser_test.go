package fidelity

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradejournal/backend/src/models"
)

const header = "Run Date,Action,Symbol,Description,Type,Quantity,Price ($),Commission ($),Fees ($),Accrued Interest ($),Amount ($),Settlement Date"

func parse(t *testing.T, input string) (models.ParseResult, error) {
	t.Helper()
	return NewParser().Parse(strings.NewReader(input))
}

func TestParseEquityRoundTrip(t *testing.T) {
	input := header + "\n" +
		"01/02/2024,YOU BOUGHT OPENING TRANSACTION,AAPL,APPLE INC,Cash,10,150,0,0,,-1500,01/04/2024\n" +
		"01/10/2024,YOU SOLD CLOSING TRANSACTION,AAPL,APPLE INC,Cash,-10,160,0,0.02,,1599.98,01/12/2024\n"

	result, err := parse(t, input)
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Empty(t, result.Issues)

	open := result.Rows[0]
	assert.Equal(t, 2, open.Line)
	assert.Equal(t, "2024-01-02", open.Date)
	assert.True(t, open.Opening)
	assert.Equal(t, models.Long, open.Direction)
	assert.Equal(t, models.InstrumentKey{Symbol: "AAPL", Type: models.InstrumentStock}, open.Key)
	assert.True(t, open.Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, open.Price.Equal(decimal.NewFromInt(150)))
	assert.True(t, open.Amount.Equal(decimal.NewFromInt(-1500)))

	closing := result.Rows[1]
	assert.False(t, closing.Opening)
	assert.Equal(t, models.Short, closing.Direction)
	assert.True(t, closing.Fees.Equal(decimal.RequireFromString("0.02")))
	assert.Equal(t, open.Key.Key(), closing.Key.Key())
}

func TestParseTabDelimitedOption(t *testing.T) {
	input := "11/01/2024\tYOU SOLD OPENING TRANSACTION\t-SPY241115P575\tPUT (SPY) SPDR S&P500 ETF NOV 15 24 $575 (100 SHS)\tMargin\t-1\t3.25\t0.65\t0.04\t\t324.31\n"

	result, err := parse(t, input)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.Equal(t, models.Short, row.Direction)
	assert.True(t, row.Opening)
	assert.Equal(t, "SPY", row.Key.Symbol)
	assert.Equal(t, models.InstrumentOption, row.Key.Type)
	assert.Equal(t, models.RightPut, row.Key.Right)
	assert.Equal(t, "575", row.Key.Strike.String())
	assert.Equal(t, "2024-11-15", row.Key.Expiration)
	assert.Equal(t, "Margin", row.AccountType)
}

func TestParseCollectsRowIssuesAndKeepsGoing(t *testing.T) {
	input := header + "\n" +
		"01/02/2024,YOU BOUGHT OPENING TRANSACTION,MSFT,MICROSOFT CORP,Cash,20,abc,0,0,,0,\n" +
		"01/03/2024,YOU BOUGHT OPENING TRANSACTION,SPYX,CALL (SPY) WEIRD,Cash,1,2.00,0,0,,-200,\n" +
		"01/04/2024,YOU BOUGHT OPENING TRANSACTION,MSFT,MICROSOFT CORP,Cash,20,\"$1,200.50\",0,0,,\"(24,010.00)\",\n" +
		"01/05/2024,YOU BOUGHT OPENING TRANSACTION,NVDA,NVIDIA CORP,Cash,0,100,0,0,,0,\n"

	result, err := parse(t, input)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.True(t, result.Rows[0].Price.Equal(decimal.RequireFromString("1200.50")))
	assert.True(t, result.Rows[0].Amount.Equal(decimal.RequireFromString("-24010")))

	require.Len(t, result.Issues, 3)
	assert.Equal(t, models.IssueRowParse, result.Issues[0].Kind)
	assert.Equal(t, 2, result.Issues[0].Line)
	assert.Equal(t, models.IssueSymbolClassification, result.Issues[1].Kind)
	assert.Equal(t, 3, result.Issues[1].Line)
	assert.Equal(t, models.IssueRowParse, result.Issues[2].Kind)
	assert.Contains(t, result.Issues[2].Message, "zero")
}

func TestParseSkipsNonTradeRowsAndFooters(t *testing.T) {
	input := "\n\nBrokerage\n" + header + "\n" +
		"01/02/2024,DIVIDEND RECEIVED,AAPL,APPLE INC,Cash,,,,,,2.40,\n" +
		"01/03/2024,YOU BOUGHT,AAPL,APPLE INC,Cash,1,150,,,,-150,\n" +
		"\"The data and information in this spreadsheet is provided to you solely for your use.\"\n"

	result, err := parse(t, input)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.False(t, result.Rows[0].Opening, "rows without OPENING TRANSACTION are closing rows")
	assert.True(t, result.Rows[0].Commission.IsZero())
	assert.Equal(t, 3, result.SkippedRows)
	assert.Empty(t, result.Issues)
}

func TestParseFatalInputs(t *testing.T) {
	_, err := parse(t, "")
	assert.True(t, errors.Is(err, models.ErrEmptyInput))

	_, err = parse(t, "  \n"+header+"\n\n")
	assert.True(t, errors.Is(err, models.ErrEmptyInput))

	result, err := parse(t, header+"\n01/02/2024,YOU BOUGHT OPENING TRANSACTION,AAPL,APPLE INC,Cash,ten,150,0,0,,0,\n")
	assert.True(t, errors.Is(err, models.ErrNoParsableRows))
	assert.Len(t, result.Issues, 1)
}

func TestParseShortDatedLineIsAnIssue(t *testing.T) {
	input := "01/02/2024,YOU BOUGHT OPENING TRANSACTION,AAPL\n" +
		"2024-01-03,YOU BOUGHT OPENING TRANSACTION,AAPL,APPLE INC,Cash,1,150,0,0,,-150\n"

	result, err := parse(t, input)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "2024-01-03", result.Rows[0].Date)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, 1, result.Issues[0].Line)
}

func TestParseExpiredOptionWithoutPrice(t *testing.T) {
	input := "11/15/2024,EXPIRED PUT (SPY) SPDR S&P500 ETF,-SPY241115P575,PUT (SPY) SPDR S&P500 ETF NOV 15 24 $575,Margin,1,,,,,0\n"

	result, err := parse(t, input)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.False(t, result.Rows[0].Opening)
	assert.True(t, result.Rows[0].Price.IsZero())
}

func TestClassifySymbol(t *testing.T) {
	tests := []struct {
		name        string
		symbol      string
		description string
		want        models.InstrumentKey
		wantErr     bool
	}{
		{
			name: "equity", symbol: " AAPL ", description: "APPLE INC",
			want: models.InstrumentKey{Symbol: "AAPL", Type: models.InstrumentStock},
		},
		{
			name: "name containing CALL is still equity", symbol: "ELY", description: "CALLAWAY GOLF CO",
			want: models.InstrumentKey{Symbol: "ELY", Type: models.InstrumentStock},
		},
		{
			name: "call with fractional strike", symbol: "AAPL250117C187.5", description: "CALL (AAPL) APPLE INC JAN 17 25 $187.5",
			want: models.InstrumentKey{Symbol: "AAPL", Type: models.InstrumentOption, Right: models.RightCall, Strike: decimal.RequireFromString("187.5"), Expiration: "2025-01-17"},
		},
		{name: "option description with equity symbol", symbol: "SPY", description: "PUT (SPY) SPDR", wantErr: true},
		{name: "impossible expiration", symbol: "-SPY241345P575", description: "PUT (SPY) SPDR", wantErr: true},
		{name: "separators are not accepted", symbol: "SPY 241115P575", description: "PUT (SPY) SPDR", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifySymbol(tt.symbol, tt.description)
			if tt.wantErr {
				var symErr *models.SymbolClassificationError
				assert.ErrorAs(t, err, &symErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Key(), got.Key())
			assert.Equal(t, tt.want.Type, got.Type)
		})
	}
}
