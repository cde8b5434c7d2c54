package services

import (
	"context"
	"fmt"

	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/processors"
	"github.com/username/tradejournal/backend/src/security/validation"
)

type analysisServiceImpl struct {
	quoteService      QuoteService
	analysisProcessor processors.AnalysisProcessor
}

func NewAnalysisService(quoteService QuoteService, analysisProcessor processors.AnalysisProcessor) AnalysisService {
	return &analysisServiceImpl{quoteService: quoteService, analysisProcessor: analysisProcessor}
}

func (s *analysisServiceImpl) GetStockAnalysis(ctx context.Context, ticker string) (*models.StockAnalysis, error) {
	ticker, err := validation.ValidateTicker(ticker)
	if err != nil {
		return nil, err
	}
	prices, err := s.quoteService.GetHistoricalPrices(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("loading price history for %s: %w", ticker, err)
	}
	analysis := s.analysisProcessor.Analyze(ticker, prices)
	return &analysis, nil
}
