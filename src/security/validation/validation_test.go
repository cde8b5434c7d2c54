package validation

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizers(t *testing.T) {
	assert.Equal(t, "hello", SanitizeText("<b>hello</b>"))
	assert.Equal(t, "'=SUM(A1:A2)", SanitizeForFormulaInjection("=SUM(A1:A2)"))
	assert.Equal(t, "'-SPY241115P575", SanitizeForFormulaInjection("-SPY241115P575"))
	assert.Equal(t, "AAPL", SanitizeForFormulaInjection("AAPL"))
	assert.Equal(t, "good entry", SanitizeNotes("  <script>x</script>good entry "))
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Earnings ", "earnings", "", "<i>swing</i>", "Breakout"})
	assert.Equal(t, []string{"earnings", "swing", "breakout"}, got)
}

func TestValidateTags(t *testing.T) {
	assert.NoError(t, ValidateTags([]string{"earnings", "swing-trade"}))
	assert.True(t, errors.Is(ValidateTags([]string{"=cmd"}), ErrValidationFailed))
	assert.Error(t, ValidateTags([]string{strings.Repeat("a", MaxTagLength+1)}))
}

func TestValidateTicker(t *testing.T) {
	ticker, err := ValidateTicker(" brk.b ")
	require.NoError(t, err)
	assert.Equal(t, "BRK.B", ticker)

	_, err = ValidateTicker("")
	assert.Error(t, err)
	_, err = ValidateTicker("AAPL; DROP")
	assert.Error(t, err)
}

func TestValidateFilters(t *testing.T) {
	assert.NoError(t, ValidatePositionStatus(""))
	assert.NoError(t, ValidatePositionStatus("PARTIALLY_CLOSED"))
	assert.Error(t, ValidatePositionStatus("closed"))
	assert.NoError(t, ValidateInstrumentType("option"))
	assert.Error(t, ValidateInstrumentType("future"))
	_, err := ValidateDateString("2024-02-30", "from")
	assert.Error(t, err)
}

func TestValidateFilename(t *testing.T) {
	assert.NoError(t, ValidateFilename("History_for_Account.csv", "test"))
	assert.Error(t, ValidateFilename("<script>.csv", "test"))
	assert.Error(t, ValidateFilename("=HYPERLINK().csv", "test"))
}

func TestValidateFileContent(t *testing.T) {
	csv := bytes.NewReader([]byte("Run Date,Action,Symbol\n01/02/2024,YOU BOUGHT,AAPL\n"))
	detected, err := ValidateFileContent(csv)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", detected)
	pos, _ := csv.Seek(0, 1)
	assert.Equal(t, int64(0), pos, "reader must be rewound")

	_, err = ValidateFileContent(bytes.NewReader([]byte{0x50, 0x4b, 0x03, 0x04, 0x00}))
	assert.Error(t, err)

	_, err = ValidateFileContent(bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestValidateClientContentType(t *testing.T) {
	assert.NoError(t, ValidateClientContentType("text/csv; charset=utf-8"))
	assert.Error(t, ValidateClientContentType("application/zip"))
}
