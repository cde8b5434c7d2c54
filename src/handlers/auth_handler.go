package handlers

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/username/tradejournal/backend/src/config"
	"github.com/username/tradejournal/backend/src/database"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/model"
	"github.com/username/tradejournal/backend/src/security/validation"
	"github.com/username/tradejournal/backend/src/utils"
)

const maxJSONBodyBytes = 1 << 20

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(dst)
}

func newRandomToken() (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(tokenBytes), nil
}

type sessionTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// issueSession creates an access/refresh token pair and persists it as a session.
func (h *UserHandler) issueSession(r *http.Request, userID int64) (*sessionTokens, error) {
	accessToken, err := h.authService.GenerateToken(fmt.Sprintf("%d", userID))
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}

	session := &model.Session{
		UserID:       userID,
		Token:        accessToken,
		RefreshToken: refreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     r.RemoteAddr,
		ExpiresAt:    time.Now().Add(config.Cfg.RefreshTokenExpiry),
	}
	if err := model.CreateSession(database.DB, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &sessionTokens{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func userPayload(user *model.User) map[string]interface{} {
	return map[string]interface{}{
		"id":            user.ID,
		"username":      user.Username,
		"email":         user.Email,
		"auth_provider": user.AuthProvider,
		"mfa_enabled":   user.MfaEnabled,
	}
}

func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	var credentials struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := decodeJSONBody(w, r, &credentials); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	credentials.Username = validation.SanitizeText(strings.TrimSpace(credentials.Username))
	credentials.Email = strings.ToLower(validation.SanitizeText(strings.TrimSpace(credentials.Email)))
	credentials.Password = strings.TrimSpace(credentials.Password)

	if credentials.Username == "" && strings.Contains(credentials.Email, "@") {
		credentials.Username = strings.Split(credentials.Email, "@")[0]
	}

	if credentials.Username == "" {
		utils.SendJSONError(w, "Username is required", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringMaxLength(credentials.Username, 50, "Username"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringNotEmpty(credentials.Email, "Email"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !emailRegex.MatchString(credentials.Email) {
		utils.SendJSONError(w, "Invalid email format", http.StatusBadRequest)
		return
	}
	if !passwordRegex.MatchString(credentials.Password) {
		utils.SendJSONError(w, "Password must be at least 6 characters long", http.StatusBadRequest)
		return
	}

	_, err := model.GetUserByUsername(database.DB, credentials.Username)
	if err == nil {
		utils.SendJSONError(w, "Username already exists", http.StatusConflict)
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		log.Error("Error checking username uniqueness", "error", err)
		utils.SendJSONError(w, "Failed to process registration", http.StatusInternalServerError)
		return
	}

	_, err = model.GetUserByEmail(database.DB, credentials.Email)
	if err == nil {
		utils.SendJSONError(w, "Email address already in use", http.StatusConflict)
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		log.Error("Error checking email uniqueness", "error", err)
		utils.SendJSONError(w, "Failed to process registration", http.StatusInternalServerError)
		return
	}

	hashedPassword, err := h.authService.HashPassword(credentials.Password)
	if err != nil {
		log.Error("Failed to hash password", "error", err)
		utils.SendJSONError(w, "Failed to process registration", http.StatusInternalServerError)
		return
	}

	verificationToken, err := newRandomToken()
	if err != nil {
		log.Error("Failed to generate verification token", "error", err)
		utils.SendJSONError(w, "Failed to process registration", http.StatusInternalServerError)
		return
	}

	user := &model.User{
		Username:                        credentials.Username,
		Email:                           credentials.Email,
		Password:                        hashedPassword,
		AuthProvider:                    "local",
		EmailVerificationToken:          verificationToken,
		EmailVerificationTokenExpiresAt: time.Now().Add(config.Cfg.VerificationTokenExpiry),
	}
	if err := user.CreateUser(database.DB); err != nil {
		log.Error("Failed to create user in DB", "error", err)
		utils.SendJSONError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	log.Info("User registered, verification email to be sent", "userID", user.ID)

	if err := h.emailService.SendVerificationEmail(user.Email, user.Username, verificationToken); err != nil {
		log.Error("Failed to send verification email after user creation", "userID", user.ID, "error", err)
		utils.WriteJSON(w, http.StatusCreated, map[string]string{
			"message": "User registered, but the verification email could not be sent. Please try logging in later to receive a new link.",
			"warning": "email_not_sent",
		})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "User registered successfully. Please check your email to verify your account.",
	})
}

func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		MfaCode  string `json:"mfa_code"`
	}
	if err := decodeJSONBody(w, r, &credentials); err != nil {
		log.Warn("Invalid request body for login", "error", err)
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	credentials.Email = strings.ToLower(validation.SanitizeText(strings.TrimSpace(credentials.Email)))

	user, err := model.GetUserByEmail(database.DB, credentials.Email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error("User lookup by email failed for login", "error", err)
		}
		utils.SendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	if user.AuthProvider != "local" {
		utils.SendJSONError(w, "This account uses Google sign-in", http.StatusUnauthorized)
		return
	}
	if err := user.CheckPassword(credentials.Password); err != nil {
		log.Warn("Password check failed for login", "userID", user.ID)
		utils.SendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	if !user.IsEmailVerified {
		log.Warn("Login attempt failed: email not verified. Resending verification.", "userID", user.ID)
		h.resendVerification(r, user)
		utils.WriteJSON(w, http.StatusForbidden, map[string]string{
			"error": "Your email address has not been verified yet. We have sent a new verification link.",
			"code":  "EMAIL_NOT_VERIFIED",
		})
		return
	}

	if user.MfaEnabled {
		if credentials.MfaCode == "" {
			utils.WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "MFA code required",
				"code":  "MFA_REQUIRED",
			})
			return
		}
		if !h.mfaService.ValidateToken(user.MfaSecret, credentials.MfaCode) {
			log.Warn("Invalid MFA code on login", "userID", user.ID)
			utils.SendJSONError(w, "Invalid MFA code", http.StatusUnauthorized)
			return
		}
	}

	if err := model.RecordLogin(database.DB, user.ID, r.RemoteAddr, r.UserAgent()); err != nil {
		log.Error("Failed to record login", "userID", user.ID, "error", err)
	}

	tokens, err := h.issueSession(r, user.ID)
	if err != nil {
		log.Error("Failed to issue session", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	log.Info("User login successful, tokens generated", "userID", user.ID)
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"user":          userPayload(user),
	})
}

func (h *UserHandler) resendVerification(r *http.Request, user *model.User) {
	log := logger.FromContext(r.Context())
	token, err := newRandomToken()
	if err != nil {
		log.Error("Failed to generate new verification token on login attempt", "userID", user.ID, "error", err)
		return
	}
	if err := user.UpdateUserVerificationToken(database.DB, token, time.Now().Add(config.Cfg.VerificationTokenExpiry)); err != nil {
		log.Error("Failed to update verification token in DB on login attempt", "userID", user.ID, "error", err)
		return
	}
	if err := h.emailService.SendVerificationEmail(user.Email, user.Username, token); err != nil {
		log.Error("Failed to resend verification email on login attempt", "userID", user.ID, "error", err)
		return
	}
	log.Info("Resent verification email on login attempt", "userID", user.ID)
}

// RefreshTokenHandler rotates the session: the old refresh token is consumed.
func (h *UserHandler) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	var requestBody struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSONBody(w, r, &requestBody); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if requestBody.RefreshToken == "" {
		utils.SendJSONError(w, "Refresh token is required", http.StatusBadRequest)
		return
	}

	oldSession, err := model.GetSessionByRefreshToken(database.DB, requestBody.RefreshToken)
	if err != nil {
		log.Warn("Refresh token lookup failed or token invalid/expired", "error", err)
		utils.SendJSONError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	if err := model.DeleteSessionByRefreshToken(database.DB, requestBody.RefreshToken); err != nil {
		log.Error("Failed to delete old session during refresh", "refreshTokenPrefix", tokenPrefix(requestBody.RefreshToken), "error", err)
	}

	tokens, err := h.issueSession(r, oldSession.UserID)
	if err != nil {
		log.Error("Failed to issue session on refresh", "userID", oldSession.UserID, "error", err)
		utils.SendJSONError(w, "Failed to create new session on refresh", http.StatusInternalServerError)
		return
	}

	log.Info("Token refreshed successfully", "userID", oldSession.UserID)
	utils.WriteJSON(w, http.StatusOK, tokens)
}

func (h *UserHandler) LogoutUserHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	tokenString := bearerToken(r)
	if tokenString == "" {
		log.Warn("Logout attempt with no token in Authorization header")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := model.DeleteSessionByToken(database.DB, tokenString); err != nil {
		log.Warn("Failed to delete session on logout", "tokenPrefix", tokenPrefix(tokenString), "error", err)
	} else {
		log.Info("Session invalidated on logout")
	}
	w.WriteHeader(http.StatusNoContent)
}
