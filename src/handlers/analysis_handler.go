package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/security/validation"
	"github.com/username/tradejournal/backend/src/services"
	"github.com/username/tradejournal/backend/src/utils"
)

type AnalysisHandler struct {
	analysisService services.AnalysisService
}

func NewAnalysisHandler(service services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: service}
}

func (h *AnalysisHandler) HandleGetStockAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.analysisService.GetStockAnalysis(r.Context(), chi.URLParam(r, "ticker"))
	switch {
	case errors.Is(err, validation.ErrValidationFailed):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, services.ErrQuoteUnavailable):
		utils.SendJSONError(w, "No price history available for this ticker", http.StatusNotFound)
		return
	case err != nil:
		logger.FromContext(r.Context()).Error("Stock analysis failed", "error", err)
		utils.SendJSONError(w, "Failed to analyze ticker", http.StatusBadGateway)
		return
	}
	utils.WriteJSON(w, http.StatusOK, analysis)
}
