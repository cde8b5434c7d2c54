package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/services"
	"github.com/username/tradejournal/backend/src/utils"
)

type DashboardHandler struct {
	journalService services.JournalService
}

func NewDashboardHandler(service services.JournalService) *DashboardHandler {
	return &DashboardHandler{journalService: service}
}

// writeWithETag answers 304 when the client already holds the same representation.
func writeWithETag(w http.ResponseWriter, r *http.Request, data interface{}) {
	etag, err := utils.GenerateETag(data)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to generate ETag", "error", err)
		utils.WriteJSON(w, http.StatusOK, data)
		return
	}

	quoted := fmt.Sprintf("%q", etag)
	w.Header().Set("ETag", quoted)
	w.Header().Set("Cache-Control", "private, no-cache")
	for _, candidate := range strings.Split(r.Header.Get("If-None-Match"), ",") {
		if strings.TrimSpace(candidate) == quoted {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, data)
}

func (h *DashboardHandler) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	metrics, err := h.journalService.GetDashboardMetrics(userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to compute dashboard metrics", "error", err)
		utils.SendJSONError(w, "Failed to load dashboard metrics", http.StatusInternalServerError)
		return
	}
	writeWithETag(w, r, metrics)
}

func (h *DashboardHandler) HandleGetFees(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	report, err := h.journalService.GetFeeReport(userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to compute fee report", "error", err)
		utils.SendJSONError(w, "Failed to load fee report", http.StatusInternalServerError)
		return
	}
	if report.Details == nil {
		report.Details = []models.FeeDetail{}
	}
	writeWithETag(w, r, report)
}

func (h *DashboardHandler) HandleGetValuation(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	valuations, err := h.journalService.GetOpenPositionValuations(r.Context(), userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to value open positions", "error", err)
		utils.SendJSONError(w, "Failed to value open positions", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, valuations)
}
