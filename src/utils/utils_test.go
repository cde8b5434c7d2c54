package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentOf(t *testing.T) {
	got := PercentOf(decimal.NewFromInt(100), decimal.NewFromInt(1500), 2)
	assert.Equal(t, "6.67", got.StringFixed(2))
	assert.True(t, PercentOf(decimal.NewFromInt(5), decimal.Zero, 2).IsZero())
}

func TestDateHelpers(t *testing.T) {
	assert.Equal(t, "2024-03", MonthOf("2024-03-15"))
	assert.Equal(t, "2024", YearOf("2024-03-15"))
	_, ok := ParseISODate("2024-02-30")
	assert.False(t, ok)
}

func TestGenerateETagIsStable(t *testing.T) {
	a, err := GenerateETag(map[string]int{"x": 1})
	require.NoError(t, err)
	b, err := GenerateETag(map[string]int{"x": 1})
	require.NoError(t, err)
	c, err := GenerateETag(map[string]int{"x": 2})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSendJSONErrorWithDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	SendJSONErrorWithDetails(rec, "import failed", []string{"line 2"}, http.StatusUnprocessableEntity)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "import failed", body["error"])
	assert.Len(t, body["details"], 1)
}
