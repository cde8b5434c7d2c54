package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/username/tradejournal/backend/src/config"
	"github.com/username/tradejournal/backend/src/database"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/model"
	"github.com/username/tradejournal/backend/src/utils"
)

const passwordResetGenericMessage = "If an account with that email exists and is verified, a password reset link has been sent."

type ChangePasswordRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

// RequestPasswordResetHandler always answers with the same message so the
// endpoint cannot be used to probe for registered emails.
func (h *UserHandler) RequestPasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSONBody(w, r, &req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRegex.MatchString(req.Email) {
		utils.SendJSONError(w, "Invalid email format", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByEmail(database.DB, req.Email)
	if err != nil || !user.IsEmailVerified || user.AuthProvider != "local" {
		log.Info("Password reset requested for unknown, unverified or external account", "errorIfAny", err)
		utils.WriteJSON(w, http.StatusOK, map[string]string{"message": passwordResetGenericMessage})
		return
	}

	resetToken, err := newRandomToken()
	if err != nil {
		log.Error("Failed to generate password reset token", "error", err)
		utils.SendJSONError(w, "Failed to process password reset request", http.StatusInternalServerError)
		return
	}
	if err := user.SetPasswordResetToken(database.DB, resetToken, time.Now().Add(config.Cfg.PasswordResetTokenExpiry)); err != nil {
		log.Error("Failed to set password reset token in DB", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Failed to process password reset request", http.StatusInternalServerError)
		return
	}

	if err := h.emailService.SendPasswordResetEmail(user.Email, user.Username, resetToken); err != nil {
		log.Error("Failed to send password reset email", "userID", user.ID, "error", err)
	}

	log.Info("Password reset email process initiated", "userID", user.ID)
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": passwordResetGenericMessage})
}

func (h *UserHandler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	var req struct {
		Token           string `json:"token"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := decodeJSONBody(w, r, &req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Token == "" {
		utils.SendJSONError(w, "Password reset token is missing", http.StatusBadRequest)
		return
	}
	if req.Password != req.ConfirmPassword {
		utils.SendJSONError(w, "Passwords do not match", http.StatusBadRequest)
		return
	}
	if !passwordRegex.MatchString(req.Password) {
		utils.SendJSONError(w, "Password must be at least 6 characters long", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByPasswordResetToken(database.DB, req.Token)
	if err != nil {
		log.Warn("Password reset token lookup failed or token expired", "tokenPrefix", tokenPrefix(req.Token), "error", err)
		utils.SendJSONError(w, "Invalid or expired password reset token.", http.StatusBadRequest)
		return
	}

	hashedPassword, err := h.authService.HashPassword(req.Password)
	if err != nil {
		log.Error("Failed to hash new password", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Failed to reset password", http.StatusInternalServerError)
		return
	}
	if err := user.UpdatePassword(database.DB, hashedPassword); err != nil {
		log.Error("Failed to update password in DB", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Failed to reset password", http.StatusInternalServerError)
		return
	}
	if err := model.DeleteSessionsForUser(database.DB, user.ID); err != nil {
		log.Warn("Failed to revoke sessions after password reset", "userID", user.ID, "error", err)
	}

	log.Info("Password reset successfully", "userID", user.ID)
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset successfully. You can now log in with your new password."})
}

func (h *UserHandler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.NewPassword != req.ConfirmNewPassword {
		utils.SendJSONError(w, "New passwords do not match", http.StatusBadRequest)
		return
	}
	if !passwordRegex.MatchString(req.NewPassword) {
		utils.SendJSONError(w, "New password must be at least 6 characters long", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		log.Error("Failed to get user for password change", "error", err)
		utils.SendJSONError(w, "Failed to retrieve user information", http.StatusInternalServerError)
		return
	}
	if user.AuthProvider != "local" {
		log.Warn("Attempt to change password for non-local account", "provider", user.AuthProvider)
		utils.SendJSONError(w, "Password cannot be changed for accounts created via Google.", http.StatusForbidden)
		return
	}
	if err := user.CheckPassword(req.CurrentPassword); err != nil {
		log.Warn("Current password mismatch for password change")
		utils.SendJSONError(w, "Incorrect current password", http.StatusForbidden)
		return
	}

	hashedNewPassword, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		log.Error("Failed to hash new password", "error", err)
		utils.SendJSONError(w, "Failed to process new password", http.StatusInternalServerError)
		return
	}
	if err := user.UpdatePassword(database.DB, hashedNewPassword); err != nil {
		log.Error("Failed to update password in DB", "error", err)
		utils.SendJSONError(w, "Failed to change password", http.StatusInternalServerError)
		return
	}

	log.Info("Password changed successfully")
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully."})
}
