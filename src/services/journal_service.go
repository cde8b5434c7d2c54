// backend/src/services/journal_service.go
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/model"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/processors"
	"github.com/username/tradejournal/backend/src/security/validation"
	"github.com/xuri/excelize/v2"
)

type journalServiceImpl struct {
	db               *sql.DB
	metricsProcessor processors.MetricsProcessor
	feeProcessor     processors.FeeProcessor
	quoteService     QuoteService
	reportCache      *cache.Cache
}

func NewJournalService(
	db *sql.DB,
	metricsProcessor processors.MetricsProcessor,
	feeProcessor processors.FeeProcessor,
	quoteService QuoteService,
	reportCache *cache.Cache,
) JournalService {
	return &journalServiceImpl{
		db:               db,
		metricsProcessor: metricsProcessor,
		feeProcessor:     feeProcessor,
		quoteService:     quoteService,
		reportCache:      reportCache,
	}
}

func (s *journalServiceImpl) ListPositions(userID int64, filter model.PositionFilter) ([]models.Position, error) {
	return model.ListPositions(s.db, userID, filter)
}

func (s *journalServiceImpl) GetPosition(userID, positionID int64) (*models.Position, error) {
	p, err := model.GetPosition(s.db, userID, positionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPositionNotFound
	}
	return p, err
}

// UpdateJournalEntry stores sanitized notes and tags. Trade figures are never editable.
func (s *journalServiceImpl) UpdateJournalEntry(userID, positionID int64, notes string, tags []string) (*models.Position, error) {
	notes = validation.SanitizeNotes(notes)
	if err := validation.ValidateNotes(notes); err != nil {
		return nil, err
	}
	tags = validation.NormalizeTags(tags)
	if err := validation.ValidateTags(tags); err != nil {
		return nil, err
	}

	err := model.UpdatePositionJournal(s.db, userID, positionID, notes, tags)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPositionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating journal entry: %w", err)
	}
	return s.GetPosition(userID, positionID)
}

func (s *journalServiceImpl) DeletePosition(userID, positionID int64) error {
	err := model.DeletePosition(s.db, userID, positionID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPositionNotFound
	}
	if err != nil {
		return err
	}
	s.InvalidateUserCache(userID)
	return nil
}

func (s *journalServiceImpl) DeleteAllPositions(userID int64) (int64, error) {
	deleted, err := model.DeleteAllPositions(s.db, userID)
	if err != nil {
		return 0, err
	}
	s.InvalidateUserCache(userID)
	return deleted, nil
}

func (s *journalServiceImpl) HasData(userID int64) (bool, error) {
	return model.UserHasPositions(s.db, userID)
}

func (s *journalServiceImpl) GetDashboardMetrics(userID int64) (models.DashboardMetrics, error) {
	cacheKey := fmt.Sprintf(ckDashboardMetrics, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(models.DashboardMetrics), nil
	}

	positions, err := model.ListPositions(s.db, userID, model.PositionFilter{})
	if err != nil {
		return models.DashboardMetrics{}, err
	}
	metrics := s.metricsProcessor.Calculate(positions)
	s.reportCache.Set(cacheKey, metrics, cache.DefaultExpiration)
	return metrics, nil
}

func (s *journalServiceImpl) GetFeeReport(userID int64) (models.FeeReport, error) {
	cacheKey := fmt.Sprintf(ckFeeReport, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(models.FeeReport), nil
	}

	positions, err := model.ListPositions(s.db, userID, model.PositionFilter{})
	if err != nil {
		return models.FeeReport{}, err
	}
	details, summary := s.feeProcessor.Process(positions)
	report := models.FeeReport{Details: details, Summary: summary}
	s.reportCache.Set(cacheKey, report, cache.DefaultExpiration)
	return report, nil
}

// GetOpenPositionValuations marks the open equity positions to the latest quote.
// Options and tickers without a quote are reported as UNAVAILABLE.
func (s *journalServiceImpl) GetOpenPositionValuations(ctx context.Context, userID int64) ([]models.PositionValuation, error) {
	positions, err := model.GetOpenPositions(s.db, userID)
	if err != nil {
		return nil, err
	}

	var tickers []string
	for _, p := range positions {
		if p.Instrument.Type == models.InstrumentStock {
			tickers = append(tickers, p.Instrument.Symbol)
		}
	}
	quotes := map[string]QuoteInfo{}
	if len(tickers) > 0 && s.quoteService != nil {
		quotes, err = s.quoteService.GetCurrentPrices(ctx, tickers)
		if err != nil {
			logger.FromContext(ctx).Warn("Could not fetch some or all current prices", "error", err)
		}
	}

	valuations := make([]models.PositionValuation, 0, len(positions))
	for _, p := range positions {
		v := models.PositionValuation{
			PositionID:        p.ID,
			Symbol:            p.Instrument.String(),
			Direction:         p.Direction,
			RemainingQuantity: p.RemainingQuantity,
			OpenPrice:         p.OpenPrice,
			CostBasis:         p.OpenPrice.Mul(p.RemainingQuantity),
			Status:            "UNAVAILABLE",
		}
		if quote, ok := quotes[strings.ToUpper(p.Instrument.Symbol)]; ok && quote.Status == "OK" && p.Instrument.Type == models.InstrumentStock {
			v.CurrentPrice = quote.Price
			v.MarketValue = quote.Price.Mul(p.RemainingQuantity)
			v.UnrealizedPnL, _ = processors.CalculateExitPnL(p.OpenPrice, quote.Price, p.RemainingQuantity, p.Direction)
			v.Status = "OK"
		}
		valuations = append(valuations, v)
	}
	return valuations, nil
}

func (s *journalServiceImpl) InvalidateUserCache(userID int64) {
	invalidateUserCache(s.reportCache, userID)
	logger.L.Debug("Invalidated journal cache", "userID", userID)
}

var exportHeaders = []string{
	"ID", "Symbol", "Type", "Right", "Strike", "Expiration", "Direction", "Open Date", "Open Quantity",
	"Open Price", "Remaining", "Status", "Realized P&L", "Commission", "Fees", "Last Exit", "Tags", "Notes",
}

var exitHeaders = []string{"Position ID", "Symbol", "Exit Date", "Quantity", "Price", "P&L", "P&L %", "Commission", "Fees"}

// ExportPositionsXLSX writes the journal into a workbook with a Positions and an Exits sheet.
func (s *journalServiceImpl) ExportPositionsXLSX(ctx context.Context, userID int64) ([]byte, error) {
	log := logger.FromContext(ctx)
	positions, err := model.ListPositions(s.db, userID, model.PositionFilter{})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Error("Failed to close workbook", "error", err)
		}
	}()

	const positionsSheet, exitsSheet = "Positions", "Exits"
	if err := f.SetSheetName("Sheet1", positionsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(exitsSheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := writeRow(f, positionsSheet, 1, toCells(exportHeaders)); err != nil {
		return nil, err
	}
	if err := writeRow(f, exitsSheet, 1, toCells(exitHeaders)); err != nil {
		return nil, err
	}
	f.SetRowStyle(positionsSheet, 1, 1, headerStyle)
	f.SetRowStyle(exitsSheet, 1, 1, headerStyle)

	exitRow := 2
	for i, p := range positions {
		strike := ""
		if p.Instrument.Type == models.InstrumentOption {
			strike = p.Instrument.Strike.String()
		}
		cells := []interface{}{
			p.ID, p.Instrument.Symbol, string(p.Instrument.Type), string(p.Instrument.Right), strike,
			p.Instrument.Expiration, p.Direction.String(), p.OpenDate, excelNumber(p.OpenQuantity),
			excelNumber(p.OpenPrice), excelNumber(p.RemainingQuantity), string(p.Status),
			excelNumber(p.RealizedPnL), excelNumber(p.Commission), excelNumber(p.Fees), p.LastExitDate(),
			validation.SanitizeForFormulaInjection(strings.Join(p.Tags, ", ")),
			validation.SanitizeForFormulaInjection(p.Notes),
		}
		if err := writeRow(f, positionsSheet, i+2, cells); err != nil {
			return nil, err
		}
		for _, e := range p.Exits {
			cells := []interface{}{
				p.ID, p.Instrument.String(), e.Date, excelNumber(e.Quantity), excelNumber(e.Price),
				excelNumber(e.PnL), excelNumber(e.PnLPercent), excelNumber(e.Commission), excelNumber(e.Fees),
			}
			if err := writeRow(f, exitsSheet, exitRow, cells); err != nil {
				return nil, err
			}
			exitRow++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	log.Info("Journal exported", "userID", userID, "positions", len(positions))
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func excelNumber(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
