package main

import (
	"fmt"
	"strings"

	"github.com/username/tradejournal/backend/src/models"
)

type reconcileReport struct {
	Rows        int
	SkippedRows int
	Positions   []models.Position
	Issues      []models.ImportIssue
	Metrics     models.DashboardMetrics
	Fees        models.FeeSummary
}

// Markdown renders the report as a markdown document titled after source.
func (r reconcileReport) Markdown(source string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Reconciliation of %s\n\n", source)
	fmt.Fprintf(&b, "%d trade rows, %d skipped rows, %d positions, %d issues.\n\n", r.Rows, r.SkippedRows, len(r.Positions), len(r.Issues))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Open | %d |\n", r.Metrics.OpenPositions)
	fmt.Fprintf(&b, "| Partially closed | %d |\n", r.Metrics.PartiallyClosedPositions)
	fmt.Fprintf(&b, "| Closed | %d |\n", r.Metrics.ClosedPositions)
	fmt.Fprintf(&b, "| Realized P&L | %s |\n", r.Metrics.TotalRealizedPnL.StringFixed(2))
	fmt.Fprintf(&b, "| Win ratio | %s%% |\n", r.Metrics.WinRatio.StringFixed(2))
	fmt.Fprintf(&b, "| Commissions and fees | %s |\n", r.Fees.Total.StringFixed(2))
	b.WriteString("\n")

	if len(r.Positions) > 0 {
		b.WriteString("## Positions\n\n")
		b.WriteString("| Instrument | Side | Opened | Quantity | Open price | Remaining | Exits | Status | Realized P&L |\n")
		b.WriteString("|---|---|---|---:|---:|---:|---:|---|---:|\n")
		for _, p := range r.Positions {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %d | %s | %s |\n",
				escapeCell(p.Instrument.String()), p.Direction, p.OpenDate,
				p.OpenQuantity.String(), p.OpenPrice.String(), p.RemainingQuantity.String(),
				len(p.Exits), p.Status, p.RealizedPnL.StringFixed(2))
		}
		b.WriteString("\n")
	}

	if len(r.Issues) > 0 {
		b.WriteString("## Issues\n\n")
		b.WriteString("| Line | Kind | Message |\n|---:|---|---|\n")
		for _, issue := range r.Issues {
			fmt.Fprintf(&b, "| %d | %s | %s |\n", issue.Line, issue.Kind, escapeCell(issue.Message))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
