package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/parsers"
)

const export = "Run Date,Action,Symbol,Description,Type,Quantity,Price ($),Commission ($),Fees ($),Accrued Interest ($),Amount ($),Settlement Date\n" +
	"01/02/2024,YOU BOUGHT OPENING TRANSACTION,AAPL,APPLE INC,Cash,10,150,0,0,,-1500,01/04/2024\n" +
	"01/10/2024,YOU SOLD CLOSING TRANSACTION,AAPL,APPLE INC,Cash,-10,160,0,0.02,,1599.98,01/12/2024\n" +
	"01/11/2024,YOU SOLD CLOSING TRANSACTION,MSFT,MICROSOFT CORP,Cash,-5,400,0,0,,2000,01/13/2024\n"

func TestReconcileExport(t *testing.T) {
	parser, err := parsers.GetParser(parsers.DefaultSource)
	require.NoError(t, err)

	report, err := reconcileExport(parser, strings.NewReader(export))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Rows)
	require.Len(t, report.Positions, 1)
	assert.Equal(t, models.StatusClosed, report.Positions[0].Status)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, models.IssueOrphanedExit, report.Issues[0].Kind)
	assert.Equal(t, 4, report.Issues[0].Line)
	assert.Equal(t, "100.00", report.Metrics.TotalRealizedPnL.StringFixed(2))
	assert.Equal(t, "0.02", report.Fees.Total.StringFixed(2))

	md := report.Markdown("export.csv")
	assert.Contains(t, md, "# Reconciliation of export.csv")
	assert.Contains(t, md, "| Realized P&L | 100.00 |")
	assert.Contains(t, md, "| AAPL | long | 2024-01-02 |")
	assert.Contains(t, md, "| 4 | ORPHANED_EXIT |")
}

func TestReconcileExportRejectsEmptyFile(t *testing.T) {
	parser, err := parsers.GetParser(parsers.DefaultSource)
	require.NoError(t, err)

	_, err = reconcileExport(parser, strings.NewReader(""))
	assert.ErrorIs(t, err, models.ErrEmptyInput)
}

func TestMarkdownEscapesPipes(t *testing.T) {
	report := reconcileReport{Issues: []models.ImportIssue{{Line: 2, Kind: models.IssueOther, Message: "a|b"}}}
	assert.Contains(t, report.Markdown("x.csv"), `a\|b`)
}
