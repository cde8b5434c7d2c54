// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"
	"io"

	"github.com/shopspring/decimal"
	"github.com/username/tradejournal/backend/src/model"
	"github.com/username/tradejournal/backend/src/models"
)

// ImportResult summarizes one ProcessImport call.
// Positions holds only the positions created or changed by this import.
type ImportResult struct {
	ImportID         int64                `json:"import_id"`
	Positions        []models.Position    `json:"positions"`
	Issues           []models.ImportIssue `json:"issues"`
	RowCount         int                  `json:"row_count"`
	DuplicateRows    int                  `json:"duplicate_rows"`
	SkippedRows      int                  `json:"skipped_rows"`
	NewPositions     int                  `json:"new_positions"`
	UpdatedPositions int                  `json:"updated_positions"`
}

// Define common service errors
var (
	ErrParsingFailed    = errors.New("import parsing failed")
	ErrPositionNotFound = errors.New("position not found")
	ErrQuoteUnavailable = errors.New("quote unavailable")
)

// ImportService turns brokerage exports into persisted positions.
type ImportService interface {
	ProcessImport(ctx context.Context, fileReader io.Reader, userID int64, source, filename string, filesize int64) (*ImportResult, error)
	GetImportHistory(userID int64) ([]model.ImportRecord, error)
}

// JournalService reads and annotates the persisted journal.
type JournalService interface {
	ListPositions(userID int64, filter model.PositionFilter) ([]models.Position, error)
	GetPosition(userID, positionID int64) (*models.Position, error)
	UpdateJournalEntry(userID, positionID int64, notes string, tags []string) (*models.Position, error)
	DeletePosition(userID, positionID int64) error
	DeleteAllPositions(userID int64) (int64, error)
	HasData(userID int64) (bool, error)
	ExportPositionsXLSX(ctx context.Context, userID int64) ([]byte, error)
	GetDashboardMetrics(userID int64) (models.DashboardMetrics, error)
	GetFeeReport(userID int64) (models.FeeReport, error)
	GetOpenPositionValuations(ctx context.Context, userID int64) ([]models.PositionValuation, error)
	InvalidateUserCache(userID int64)
}

type QuoteInfo struct {
	Status   string          `json:"status"` // "OK" or "UNAVAILABLE"
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
}

// QuoteService fetches market prices.
type QuoteService interface {
	GetCurrentPrices(ctx context.Context, tickers []string) (map[string]QuoteInfo, error)
	// GetHistoricalPrices returns daily closes, oldest first.
	GetHistoricalPrices(ctx context.Context, ticker string) ([]models.PricePoint, error)
}

type AnalysisService interface {
	GetStockAnalysis(ctx context.Context, ticker string) (*models.StockAnalysis, error)
}
