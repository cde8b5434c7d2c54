package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaultsAndDerivedURLs(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CSRF_AUTH_KEY", "csrf-key")
	t.Setenv("APP_BASE_URL", "https://journal.example.com/")
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://journal.example.com, http://localhost:3000")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 60*time.Minute, cfg.AccessTokenExpiry)
	assert.Equal(t, []byte("csrf-key"), cfg.CSRFAuthKey)
	assert.Equal(t, "https://journal.example.com/verify-email", cfg.VerificationEmailBaseURL)
	assert.Equal(t, "https://journal.example.com/reset-password", cfg.PasswordResetBaseURL)
	assert.Equal(t, "https://api.example.com/api/auth/google/callback", cfg.GoogleRedirectURL)
	assert.Equal(t, []string{"https://journal.example.com", "http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(10485760), cfg.MaxUploadSizeBytes)
}

func TestParseRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CSRF_AUTH_KEY", "csrf-key")

	_, err := Parse()
	assert.Error(t, err)
}

func TestParseKeepsExplicitURLs(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CSRF_AUTH_KEY", "csrf-key")
	t.Setenv("PASSWORD_RESET_BASE_URL", "https://other.example.com/reset")
	t.Setenv("QUOTE_REQUESTS_PER_SECOND", "0")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/reset", cfg.PasswordResetBaseURL)
	assert.Equal(t, 4, cfg.QuoteRequestsPerSec)
}
