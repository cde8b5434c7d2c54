package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./tradejournal.db"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	// Security settings
	JWTSecret          string        `env:"JWT_SECRET,required,notEmpty"`
	CSRFAuthKey        []byte
	CSRFAuthKeyRaw     string        `env:"CSRF_AUTH_KEY,required,notEmpty"`
	OAuthStateString   string        `env:"OAUTH_STATE_STRING" envDefault:"secure-random-state-string-for-dev-only"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"60m"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"168h"`
	MaxUploadSizeBytes int64         `env:"MAX_UPLOAD_SIZE_BYTES" envDefault:"10485760"`
	AllowedOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// Email Service settings
	EmailServiceProvider string `env:"EMAIL_SERVICE_PROVIDER" envDefault:"mock"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"noreply@example.com"`
	SenderName           string `env:"SENDER_NAME" envDefault:"Trade Journal"`

	// SMTP specific settings
	SMTPServer   string `env:"SMTP_SERVER"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	// Mailgun specific settings
	MailgunDomain        string `env:"MAILGUN_DOMAIN"`
	MailgunPrivateAPIKey string `env:"MAILGUN_PRIVATE_API_KEY"`

	// URL and Token Expiry settings for user actions
	VerificationEmailBaseURL string        `env:"VERIFICATION_EMAIL_BASE_URL"`
	VerificationTokenExpiry  time.Duration `env:"VERIFICATION_TOKEN_EXPIRY" envDefault:"24h"`
	PasswordResetBaseURL     string        `env:"PASSWORD_RESET_BASE_URL"`
	PasswordResetTokenExpiry time.Duration `env:"PASSWORD_RESET_TOKEN_EXPIRY" envDefault:"1h"`

	// Google OAuth settings
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`

	// Frontend and API base URLs, used to derive the links above.
	FrontendBaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
	APIBaseURL      string `env:"API_BASE_URL" envDefault:"http://localhost:8080"`

	// Market data
	QuoteAPIBaseURL      string        `env:"QUOTE_API_BASE_URL" envDefault:"https://query1.finance.yahoo.com"`
	QuoteAPITimeout      time.Duration `env:"QUOTE_API_TIMEOUT" envDefault:"20s"`
	QuoteRequestsPerSec  int           `env:"QUOTE_REQUESTS_PER_SECOND" envDefault:"4"`
	QuoteCacheExpiration time.Duration `env:"QUOTE_CACHE_EXPIRATION" envDefault:"15m"`
	PriceHistoryRange    string        `env:"PRICE_HISTORY_RANGE" envDefault:"2y"`

	// Background jobs
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"1h"`
	PriceCleanupInterval   time.Duration `env:"PRICE_CLEANUP_INTERVAL" envDefault:"24h"`
	PriceRetention         time.Duration `env:"PRICE_RETENTION" envDefault:"2160h"`
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

const defaultOAuthState = "secure-random-state-string-for-dev-only"

// LoadConfig loads configuration from environment variables or a .env file.
func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		// Common when running from a subdirectory of the repo.
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	cfg, err := Parse()
	if err != nil {
		log.Fatalf("FATAL: invalid configuration: %v. Application cannot start securely.", err)
	}
	Cfg = cfg

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, FrontendURL=%s, EmailProvider=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.FrontendBaseURL, Cfg.EmailServiceProvider)
}

// Parse reads the environment into a new AppConfig and fills the derived values.
func Parse() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	applyDerived(cfg)
	return cfg, nil
}

func applyDerived(cfg *AppConfig) {
	cfg.CSRFAuthKey = []byte(cfg.CSRFAuthKeyRaw)

	if cfg.OAuthStateString == defaultOAuthState {
		log.Println("WARNING: Using default OAUTH_STATE_STRING. Set this in production.")
	}

	frontend := strings.TrimRight(cfg.FrontendBaseURL, "/")
	if cfg.VerificationEmailBaseURL == "" {
		cfg.VerificationEmailBaseURL = frontend + "/verify-email"
	}
	if cfg.PasswordResetBaseURL == "" {
		cfg.PasswordResetBaseURL = frontend + "/reset-password"
	}
	if cfg.GoogleRedirectURL == "" {
		cfg.GoogleRedirectURL = strings.TrimRight(cfg.APIBaseURL, "/") + "/api/auth/google/callback"
	}
	if cfg.MaxUploadSizeBytes <= 0 {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES %d. Using default 10MB.", cfg.MaxUploadSizeBytes)
		cfg.MaxUploadSizeBytes = 10 * 1024 * 1024
	}
	if cfg.QuoteRequestsPerSec <= 0 {
		cfg.QuoteRequestsPerSec = 4
	}
	for i, origin := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
	}
}
