package handlers

import (
	"net/http"

	"github.com/username/tradejournal/backend/src/database"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/model"
	"github.com/username/tradejournal/backend/src/utils"
)

type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// DeleteAccountHandler removes the user. Positions, exits, imports and sessions
// go with it through the foreign key cascades.
func (h *UserHandler) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req DeleteAccountRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		log.Error("Failed to get user for account deletion", "error", err)
		utils.SendJSONError(w, "Failed to retrieve user information", http.StatusInternalServerError)
		return
	}

	if user.AuthProvider == "local" {
		if err := user.CheckPassword(req.Password); err != nil {
			log.Warn("Password mismatch for account deletion")
			utils.SendJSONError(w, "Incorrect password. Account deletion failed.", http.StatusForbidden)
			return
		}
	}

	if err := model.DeleteUser(database.DB, userID); err != nil {
		log.Error("Failed to delete user account", "error", err)
		utils.SendJSONError(w, "Failed to delete user account", http.StatusInternalServerError)
		return
	}
	h.journalService.InvalidateUserCache(userID)

	log.Info("Account deleted successfully")
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) HandleCheckUserData(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	hasData, err := h.journalService.HasData(userID)
	if err != nil {
		log.Error("Error checking user data", "error", err)
		utils.SendJSONError(w, "failed to check user data", http.StatusInternalServerError)
		return
	}
	log.Debug("User data check", "hasData", hasData)
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"hasData": hasData})
}
