package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/model"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/security/validation"
	"github.com/username/tradejournal/backend/src/services"
	"github.com/username/tradejournal/backend/src/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type JournalHandler struct {
	journalService services.JournalService
}

func NewJournalHandler(service services.JournalService) *JournalHandler {
	return &JournalHandler{journalService: service}
}

func positionIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid position id")
	}
	return id, nil
}

func positionFilterFromQuery(r *http.Request) (model.PositionFilter, error) {
	q := r.URL.Query()
	filter := model.PositionFilter{
		Status:         strings.ToUpper(strings.TrimSpace(q.Get("status"))),
		Symbol:         strings.TrimSpace(q.Get("symbol")),
		InstrumentType: strings.ToLower(strings.TrimSpace(q.Get("type"))),
		From:           strings.TrimSpace(q.Get("from")),
		To:             strings.TrimSpace(q.Get("to")),
	}
	if err := validation.ValidatePositionStatus(filter.Status); err != nil {
		return filter, err
	}
	if err := validation.ValidateInstrumentType(filter.InstrumentType); err != nil {
		return filter, err
	}
	if filter.Symbol != "" {
		if err := validation.ValidateStringMaxLength(filter.Symbol, validation.MaxTickerLength, "symbol"); err != nil {
			return filter, err
		}
	}
	if filter.From != "" {
		if _, err := validation.ValidateDateString(filter.From, "from"); err != nil {
			return filter, err
		}
	}
	if filter.To != "" {
		if _, err := validation.ValidateDateString(filter.To, "to"); err != nil {
			return filter, err
		}
	}
	return filter, nil
}

func (h *JournalHandler) HandleListPositions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	filter, err := positionFilterFromQuery(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	positions, err := h.journalService.ListPositions(userID, filter)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list positions", "error", err)
		utils.SendJSONError(w, "Failed to load positions", http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []models.Position{}
	}
	utils.WriteJSON(w, http.StatusOK, positions)
}

func (h *JournalHandler) HandleGetPosition(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	positionID, err := positionIDParam(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	position, err := h.journalService.GetPosition(userID, positionID)
	if errors.Is(err, services.ErrPositionNotFound) {
		utils.SendJSONError(w, "Position not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to load position", "positionID", positionID, "error", err)
		utils.SendJSONError(w, "Failed to load position", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, position)
}

// HandleUpdatePosition edits the journal annotations of a position. Trade data is read-only.
func (h *JournalHandler) HandleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	positionID, err := positionIDParam(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req struct {
		Notes *string  `json:"notes"`
		Tags  []string `json:"tags"`
	}
	if err := decodeJSONBody(w, r, &req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	current, err := h.journalService.GetPosition(userID, positionID)
	if errors.Is(err, services.ErrPositionNotFound) {
		utils.SendJSONError(w, "Position not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to load position for update", "positionID", positionID, "error", err)
		utils.SendJSONError(w, "Failed to update position", http.StatusInternalServerError)
		return
	}

	notes := current.Notes
	if req.Notes != nil {
		notes = *req.Notes
	}
	tags := current.Tags
	if req.Tags != nil {
		tags = req.Tags
	}

	updated, err := h.journalService.UpdateJournalEntry(userID, positionID, notes, tags)
	switch {
	case errors.Is(err, validation.ErrValidationFailed):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, services.ErrPositionNotFound):
		utils.SendJSONError(w, "Position not found", http.StatusNotFound)
		return
	case err != nil:
		logger.FromContext(r.Context()).Error("Failed to update journal entry", "positionID", positionID, "error", err)
		utils.SendJSONError(w, "Failed to update position", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}

func (h *JournalHandler) HandleDeletePosition(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	positionID, err := positionIDParam(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = h.journalService.DeletePosition(userID, positionID)
	if errors.Is(err, services.ErrPositionNotFound) {
		utils.SendJSONError(w, "Position not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to delete position", "positionID", positionID, "error", err)
		utils.SendJSONError(w, "Failed to delete position", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteAllPositions wipes the journal and the import history so files can be imported again.
func (h *JournalHandler) HandleDeleteAllPositions(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	deleted, err := h.journalService.DeleteAllPositions(userID)
	if err != nil {
		log.Error("Failed to delete all positions", "error", err)
		utils.SendJSONError(w, "Failed to delete journal data", http.StatusInternalServerError)
		return
	}
	log.Info("Deleted all positions", "count", deleted)
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "All journal data deleted.",
		"deleted": deleted,
	})
}

func (h *JournalHandler) HandleExportPositions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	content, err := h.journalService.ExportPositionsXLSX(r.Context(), userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to export positions", "error", err)
		utils.SendJSONError(w, "Failed to export journal", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("trade-journal-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		logger.FromContext(r.Context()).Error("Failed to write export response", "error", err)
	}
}
