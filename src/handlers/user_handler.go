// backend/src/handlers/user_handler.go

package handlers

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/username/tradejournal/backend/src/database"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/model"
	"github.com/username/tradejournal/backend/src/security"
	"github.com/username/tradejournal/backend/src/services"
	"github.com/username/tradejournal/backend/src/utils"
)

type contextKey string

const userIDContextKey contextKey = "userID"

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
var passwordRegex = regexp.MustCompile(`^.{6,}$`)

// UserHandler serves registration, sessions, account settings and MFA.
type UserHandler struct {
	authService    *security.AuthService
	emailService   services.EmailService
	journalService services.JournalService
	mfaService     *services.MFAService
}

func NewUserHandler(authService *security.AuthService, emailService services.EmailService, journalService services.JournalService, mfaService *services.MFAService) *UserHandler {
	return &UserHandler{
		authService:    authService,
		emailService:   emailService,
		journalService: journalService,
		mfaService:     mfaService,
	}
}

func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}

// bearerToken accepts both "Bearer <token>" and a bare token.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

func tokenPrefix(token string) string {
	return token[:min(10, len(token))]
}

func (h *UserHandler) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	token := r.URL.Query().Get("token")
	if token == "" {
		utils.SendJSONError(w, "Verification token is missing", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByVerificationToken(database.DB, token)
	if err != nil {
		log.Warn("Verification token lookup failed", "tokenPrefix", tokenPrefix(token), "error", err)
		utils.SendJSONError(w, "Invalid or expired verification token.", http.StatusBadRequest)
		return
	}

	if user.IsEmailVerified {
		log.Info("Email already verified", "userID", user.ID)
		utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Email already verified. You can log in."})
		return
	}

	if time.Now().After(user.EmailVerificationTokenExpiresAt) {
		log.Warn("Verification token expired", "userID", user.ID, "tokenExpiry", user.EmailVerificationTokenExpiresAt)
		utils.SendJSONError(w, "Verification token has expired. Please request a new one.", http.StatusBadRequest)
		return
	}

	if err := user.UpdateUserVerificationStatus(database.DB, true); err != nil {
		log.Error("Failed to update user verification status in DB", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Failed to verify email. Please try again or contact support.", http.StatusInternalServerError)
		return
	}

	log.Info("Email verified successfully", "userID", user.ID)
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully! You can now log in."})
}

// HandleSetupMFA stores a fresh TOTP secret and returns its QR code.
// MFA stays disabled until the user confirms a code through HandleEnableMFA.
func (h *UserHandler) HandleSetupMFA(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		utils.SendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if user.MfaEnabled {
		utils.SendJSONError(w, "MFA is already enabled", http.StatusConflict)
		return
	}

	secret, qrCode, err := h.mfaService.GenerateMFASecret(user.Username)
	if err != nil {
		log.Error("Failed to generate MFA secret", "error", err)
		utils.SendJSONError(w, "Failed to generate MFA secret", http.StatusInternalServerError)
		return
	}
	if err := user.UpdateMfaSecret(database.DB, secret); err != nil {
		log.Error("Failed to store MFA secret", "error", err)
		utils.SendJSONError(w, "Failed to save MFA secret", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"secret":  secret,
		"qr_code": qrCode,
	})
}

func (h *UserHandler) HandleEnableMFA(w http.ResponseWriter, r *http.Request) {
	h.setMFA(w, r, true)
}

func (h *UserHandler) HandleDisableMFA(w http.ResponseWriter, r *http.Request) {
	h.setMFA(w, r, false)
}

// setMFA toggles MFA after checking a current code against the stored secret.
func (h *UserHandler) setMFA(w http.ResponseWriter, r *http.Request, enable bool) {
	log := logger.FromContext(r.Context())
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSONBody(w, r, &req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		utils.SendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if user.MfaSecret == "" {
		utils.SendJSONError(w, "MFA has not been set up", http.StatusBadRequest)
		return
	}
	if !h.mfaService.ValidateToken(user.MfaSecret, req.Code) {
		log.Warn("Invalid MFA code", "enable", enable)
		utils.SendJSONError(w, "Invalid MFA code", http.StatusUnauthorized)
		return
	}

	if err := user.UpdateMfaEnabled(database.DB, enable); err != nil {
		log.Error("Failed to update MFA status", "error", err)
		utils.SendJSONError(w, "Failed to update MFA status", http.StatusInternalServerError)
		return
	}
	if !enable {
		if err := user.UpdateMfaSecret(database.DB, ""); err != nil {
			log.Warn("Failed to clear MFA secret", "error", err)
		}
	}

	message := "MFA enabled successfully"
	if !enable {
		message = "MFA disabled successfully"
	}
	log.Info(message)
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"message": message, "mfa_enabled": enable})
}
