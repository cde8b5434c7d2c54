package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/utils"
)

const (
	csrfCookieName = "_journal_csrf"
	csrfHeaderName = "X-CSRF-Token"
)

// CSRFHandler issues and checks double-submit tokens. Tokens are random values
// signed with the configured key so a cookie planted by another site is rejected.
type CSRFHandler struct {
	key []byte
}

func NewCSRFHandler(key []byte) *CSRFHandler {
	return &CSRFHandler{key: key}
}

func (c *CSRFHandler) sign(nonce string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(nonce))
	return nonce + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (c *CSRFHandler) valid(token string) bool {
	for i := len(token) - 1; i >= 0; i-- {
		if token[i] == '.' {
			return hmac.Equal([]byte(c.sign(token[:i])), []byte(token))
		}
	}
	return false
}

func (c *CSRFHandler) GetCSRFToken(w http.ResponseWriter, r *http.Request) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		logger.FromContext(r.Context()).Error("Error generating random bytes for CSRF token", "error", err)
		utils.SendJSONError(w, "Failed to generate CSRF token", http.StatusInternalServerError)
		return
	}
	token := c.sign(base64.RawURLEncoding.EncodeToString(b))

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		MaxAge:   3600,
	})
	w.Header().Set(csrfHeaderName, token)
	utils.WriteJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

func (c *CSRFHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		headerToken := r.Header.Get(csrfHeaderName)
		cookie, errCookie := r.Cookie(csrfCookieName)
		if headerToken != "" && errCookie == nil && headerToken == cookie.Value && c.valid(headerToken) {
			next.ServeHTTP(w, r)
			return
		}

		logger.FromContext(r.Context()).Warn("CSRF validation failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Bool("headerTokenPresent", headerToken != ""),
			slog.Bool("cookiePresent", errCookie == nil),
			slog.String("origin", r.Header.Get("Origin")),
		)
		utils.SendJSONError(w, "CSRF token validation failed", http.StatusForbidden)
	})
}
