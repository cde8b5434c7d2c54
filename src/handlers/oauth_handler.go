// backend/src/handlers/oauth_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/username/tradejournal/backend/src/config"
	"github.com/username/tradejournal/backend/src/database"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/model"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var googleOauthConfig *oauth2.Config

func InitializeGoogleOAuthConfig() {
	googleOauthConfig = &oauth2.Config{
		RedirectURL:  config.Cfg.GoogleRedirectURL,
		ClientID:     config.Cfg.GoogleClientID,
		ClientSecret: config.Cfg.GoogleClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}
}

func signinRedirect(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, fmt.Sprintf("%s/signin?error=%s", config.Cfg.FrontendBaseURL, reason), http.StatusTemporaryRedirect)
}

func (h *UserHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if googleOauthConfig == nil || googleOauthConfig.ClientID == "" {
		signinRedirect(w, r, "google_login_disabled")
		return
	}
	http.Redirect(w, r, googleOauthConfig.AuthCodeURL(config.Cfg.OAuthStateString), http.StatusTemporaryRedirect)
}

func (h *UserHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	if googleOauthConfig == nil {
		signinRedirect(w, r, "google_login_disabled")
		return
	}
	if r.FormValue("state") != config.Cfg.OAuthStateString {
		log.Warn("Invalid OAuth state from Google callback")
		signinRedirect(w, r, "invalid_state")
		return
	}

	token, err := googleOauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		log.Error("Failed to exchange code for token", "error", err)
		signinRedirect(w, r, "token_exchange_failed")
		return
	}

	response, err := googleOauthConfig.Client(r.Context(), token).Get(googleUserInfoURL)
	if err != nil {
		log.Error("Failed to get user info from Google", "error", err)
		signinRedirect(w, r, "userinfo_failed")
		return
	}
	defer response.Body.Close()

	var googleUser struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Verified bool   `json:"verified_email"`
		ID       string `json:"id"`
	}
	if err := json.NewDecoder(response.Body).Decode(&googleUser); err != nil {
		log.Error("Failed to decode Google user info", "error", err)
		signinRedirect(w, r, "userinfo_parse_failed")
		return
	}
	if !googleUser.Verified {
		signinRedirect(w, r, "email_not_verified_by_google")
		return
	}

	user, err := model.GetUserByEmail(database.DB, googleUser.Email)
	if err != nil {
		user = &model.User{
			Username:        googleUser.Email,
			Email:           googleUser.Email,
			AuthProvider:    "google",
			IsEmailVerified: true,
		}
		if err := user.CreateUser(database.DB); err != nil {
			log.Error("Failed to create Google user", "error", err)
			signinRedirect(w, r, "user_creation_failed")
			return
		}
	} else if user.AuthProvider == "local" || user.Password != "" {
		log.Warn("Google login attempt for existing local account", "userID", user.ID)
		signinRedirect(w, r, "email_already_exists_local")
		return
	}

	if err := model.RecordLogin(database.DB, user.ID, r.RemoteAddr, r.UserAgent()); err != nil {
		log.Error("Failed to record login", "userID", user.ID, "error", err)
	}

	userJSON, err := json.Marshal(userPayload(user))
	if err != nil {
		log.Error("Failed to marshal user object for frontend", "error", err)
		signinRedirect(w, r, "user_data_build_failed")
		return
	}

	tokens, err := h.issueSession(r, user.ID)
	if err != nil {
		log.Error("Failed to issue session for Google user", "userID", user.ID, "error", err)
		signinRedirect(w, r, "token_generation_failed")
		return
	}

	query := url.Values{}
	query.Set("token", tokens.AccessToken)
	query.Set("refresh_token", tokens.RefreshToken)
	query.Set("user", string(userJSON))
	http.Redirect(w, r, fmt.Sprintf("%s/auth/google/callback?%s", config.Cfg.FrontendBaseURL, query.Encode()), http.StatusTemporaryRedirect)
}
