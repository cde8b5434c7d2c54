// backend/src/services/import_service.go
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/model"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/parsers"
	"github.com/username/tradejournal/backend/src/processors"
)

type importServiceImpl struct {
	db                   *sql.DB
	transactionProcessor *processors.TransactionProcessor
	reconciler           processors.PositionReconciler
	reportCache          *cache.Cache
}

func NewImportService(
	db *sql.DB,
	transactionProcessor *processors.TransactionProcessor,
	reconciler processors.PositionReconciler,
	reportCache *cache.Cache,
) ImportService {
	return &importServiceImpl{
		db:                   db,
		transactionProcessor: transactionProcessor,
		reconciler:           reconciler,
		reportCache:          reportCache,
	}
}

// ProcessImport parses the file, drops rows imported before, reconciles the rest
// against the user's open positions and stores everything in one transaction.
// When parsing fails the returned result still carries the row issues.
func (s *importServiceImpl) ProcessImport(ctx context.Context, fileReader io.Reader, userID int64, source, filename string, filesize int64) (*ImportResult, error) {
	startTime := time.Now()
	log := logger.FromContext(ctx)
	if source == "" {
		source = parsers.DefaultSource
	}
	log.Info("ProcessImport START", "userID", userID, "source", source, "filename", filename)

	parser, err := parsers.GetParser(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParsingFailed, err)
	}
	parsed, err := parser.Parse(fileReader)
	if err != nil {
		return &ImportResult{
			Positions:   []models.Position{},
			Issues:      nonNilIssues(parsed.Issues),
			SkippedRows: parsed.SkippedRows,
		}, fmt.Errorf("%w: %w", ErrParsingFailed, err)
	}

	rows := s.transactionProcessor.Process(parsed.Rows)
	hashes := make([]string, len(rows))
	for i, row := range rows {
		hashes[i] = row.Hash
	}
	existing, err := model.ExistingRowHashes(s.db, userID, hashes)
	if err != nil {
		return nil, fmt.Errorf("error checking for previously imported rows: %w", err)
	}
	fresh := make([]models.TransactionRow, 0, len(rows))
	for _, row := range rows {
		if existing[row.Hash] {
			continue
		}
		fresh = append(fresh, row)
	}
	duplicates := len(rows) - len(fresh)
	if duplicates > 0 {
		log.Debug("Skipping rows imported before", "userID", userID, "duplicates", duplicates)
	}

	seed, err := model.GetOpenPositions(s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading open positions: %w", err)
	}
	reconciled := s.reconciler.Reconcile(fresh, seed)

	issues := append(append([]models.ImportIssue{}, parsed.Issues...), reconciled.Issues...)
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Line < issues[j].Line })

	result := &ImportResult{
		Positions:     reconciled.Positions,
		Issues:        issues,
		RowCount:      len(rows),
		DuplicateRows: duplicates,
		SkippedRows:   parsed.SkippedRows,
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	result.NewPositions, result.UpdatedPositions, err = model.SavePositions(dbTx, userID, result.Positions)
	if err != nil {
		return nil, fmt.Errorf("error saving positions: %w", err)
	}

	issuesJSON, err := json.Marshal(issues)
	if err != nil {
		return nil, fmt.Errorf("error encoding import issues: %w", err)
	}
	record := &model.ImportRecord{
		UserID:           userID,
		Source:           source,
		Filename:         filename,
		FileSize:         filesize,
		RowCount:         result.RowCount,
		DuplicateRows:    result.DuplicateRows,
		SkippedRows:      result.SkippedRows,
		NewPositions:     result.NewPositions,
		UpdatedPositions: result.UpdatedPositions,
		IssueCount:       len(issues),
		Issues:           issuesJSON,
	}
	if err := model.CreateImportRecord(dbTx, record); err != nil {
		return nil, fmt.Errorf("failed to record import in history: %w", err)
	}
	result.ImportID = record.ID

	if err := model.InsertRowHashes(dbTx, userID, record.ID, appliedHashes(fresh, reconciled.Issues)); err != nil {
		return nil, fmt.Errorf("failed to record imported rows: %w", err)
	}
	if err := model.IncrementImportCount(dbTx, userID); err != nil {
		return nil, fmt.Errorf("failed to update user import count: %w", err)
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing import: %w", err)
	}

	invalidateUserCache(s.reportCache, userID)
	log.Info("ProcessImport END", "userID", userID, "importID", record.ID,
		"rows", result.RowCount, "duplicates", duplicates, "new", result.NewPositions,
		"updated", result.UpdatedPositions, "issues", len(issues), "duration", time.Since(startTime))
	return result, nil
}

func (s *importServiceImpl) GetImportHistory(userID int64) ([]model.ImportRecord, error) {
	return model.ListImports(s.db, userID)
}

// appliedHashes returns the hashes of rows the reconciler accepted. Rejected rows are
// left unrecorded so a later upload of the same file can apply them.
func appliedHashes(rows []models.TransactionRow, issues []models.ImportIssue) []string {
	rejected := make(map[int]bool, len(issues))
	for _, issue := range issues {
		rejected[issue.Line] = true
	}
	hashes := make([]string, 0, len(rows))
	for _, row := range rows {
		if rejected[row.Line] {
			continue
		}
		hashes = append(hashes, row.Hash)
	}
	return hashes
}

func nonNilIssues(issues []models.ImportIssue) []models.ImportIssue {
	if issues == nil {
		return []models.ImportIssue{}
	}
	return issues
}
