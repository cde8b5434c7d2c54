package processors

import "github.com/username/tradejournal/backend/src/models"

// ReconcileResult is the outcome of matching a file's rows into positions.
type ReconcileResult struct {
	Positions []models.Position    `json:"positions"`
	Issues    []models.ImportIssue `json:"issues"`
}

// PositionReconciler matches opening rows to later closing rows of the same instrument.
type PositionReconciler interface {
	Reconcile(rows []models.TransactionRow, seed []models.Position) ReconcileResult
}

// MetricsProcessor computes dashboard figures from a set of positions.
type MetricsProcessor interface {
	Calculate(positions []models.Position) models.DashboardMetrics
}

// FeeProcessor extracts commissions and fees from positions.
type FeeProcessor interface {
	Process(positions []models.Position) ([]models.FeeDetail, models.FeeSummary)
}

// AnalysisProcessor computes technical figures from a daily price history.
type AnalysisProcessor interface {
	Analyze(ticker string, prices []models.PricePoint) models.StockAnalysis
}
