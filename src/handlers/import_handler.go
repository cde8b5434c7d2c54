// backend/src/handlers/import_handler.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/username/tradejournal/backend/src/config"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/model"
	"github.com/username/tradejournal/backend/src/security/validation"
	"github.com/username/tradejournal/backend/src/services"
	"github.com/username/tradejournal/backend/src/utils"
)

type ImportHandler struct {
	importService services.ImportService
}

func NewImportHandler(service services.ImportService) *ImportHandler {
	return &ImportHandler{importService: service}
}

// HandleImport accepts a multipart upload with a "file" field and an optional "source".
// A file that cannot be parsed at all is a 400 whose details carry the row issues;
// anything else returns the import result, including its non-fatal issues.
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	maxSize := config.Cfg.MaxUploadSizeBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+(1<<20))
	if err := r.ParseMultipartForm(maxSize); err != nil {
		log.Warn("Failed to parse multipart form or request too large", "error", err, "limit", maxSize)
		utils.SendJSONError(w, fmt.Sprintf("Failed to read the upload or file too large (max %d MB)", maxSize/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		log.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure the 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > maxSize {
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", maxSize/(1024*1024)), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateFilename(fileHeader.Filename, fmt.Sprintf("user:%d", userID)); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateClientContentType(fileHeader.Header.Get("Content-Type")); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	detectedType, err := validation.ValidateFileContent(file)
	if err != nil {
		log.Warn("File content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Info("Processing import", "filename", fileHeader.Filename, "size", fileHeader.Size, "detectedType", detectedType)

	result, err := h.importService.ProcessImport(r.Context(), file, userID, r.FormValue("source"), fileHeader.Filename, fileHeader.Size)
	if err != nil {
		if errors.Is(err, services.ErrParsingFailed) {
			var details interface{}
			if result != nil {
				details = result.Issues
			}
			utils.SendJSONErrorWithDetails(w, err.Error(), details, http.StatusBadRequest)
			return
		}
		log.Error("Import failed", "error", err)
		utils.SendJSONError(w, "Failed to process import", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, result)
}

func (h *ImportHandler) HandleGetImports(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	records, err := h.importService.GetImportHistory(userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to load import history", "error", err)
		utils.SendJSONError(w, "Failed to load import history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.ImportRecord{}
	}
	utils.WriteJSON(w, http.StatusOK, records)
}
