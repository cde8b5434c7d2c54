package model

import (
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID                              int64     `json:"id"`
	Username                        string    `json:"username"`
	Email                           string    `json:"email"`
	Password                        string    `json:"-"`
	AuthProvider                    string    `json:"auth_provider,omitempty"`
	ImportCount                     int       `json:"import_count"`
	LoginCount                      int       `json:"login_count"`
	LastLoginAt                     NullTime  `json:"last_login_at"`
	LastLoginIP                     string    `json:"last_login_ip"`
	CreatedAt                       time.Time `json:"created_at"`
	UpdatedAt                       time.Time `json:"updated_at"`
	IsEmailVerified                 bool      `json:"is_email_verified"`
	EmailVerificationToken          string    `json:"-"`
	EmailVerificationTokenExpiresAt time.Time `json:"-"`
	PasswordResetToken              string    `json:"-"`
	PasswordResetTokenExpiresAt     time.Time `json:"-"`
	MfaSecret                       string    `json:"-"`
	MfaEnabled                      bool      `json:"mfa_enabled"`
}

// NullTime is sql.NullTime with a JSON null for invalid values.
type NullTime sql.NullTime

func (nt NullTime) MarshalJSON() ([]byte, error) {
	if !nt.Valid {
		return []byte("null"), nil
	}
	return nt.Time.MarshalJSON()
}

var (
	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")
	ErrInvalidResetToken        = errors.New("invalid or expired password reset token")
)

const userColumns = `
	id, username, email, password, auth_provider, import_count, login_count, last_login_at, last_login_ip,
	is_email_verified, email_verification_token, email_verification_token_expires_at,
	password_reset_token, password_reset_token_expires_at,
	created_at, updated_at, mfa_secret, mfa_enabled`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	var user User
	var authProvider, lastLoginIP, emailVerificationToken, passwordResetToken, mfaSecret sql.NullString
	var lastLoginAt, emailVerificationTokenExpiresAt, passwordResetTokenExpiresAt sql.NullTime

	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.Password, &authProvider,
		&user.ImportCount, &user.LoginCount, &lastLoginAt, &lastLoginIP,
		&user.IsEmailVerified, &emailVerificationToken, &emailVerificationTokenExpiresAt,
		&passwordResetToken, &passwordResetTokenExpiresAt,
		&user.CreatedAt, &user.UpdatedAt, &mfaSecret, &user.MfaEnabled,
	)
	if err != nil {
		return nil, err
	}

	user.AuthProvider = authProvider.String
	user.LastLoginAt = NullTime(lastLoginAt)
	user.LastLoginIP = lastLoginIP.String
	user.EmailVerificationToken = emailVerificationToken.String
	user.EmailVerificationTokenExpiresAt = emailVerificationTokenExpiresAt.Time
	user.PasswordResetToken = passwordResetToken.String
	user.PasswordResetTokenExpiresAt = passwordResetTokenExpiresAt.Time
	user.MfaSecret = mfaSecret.String
	return &user, nil
}

func (u *User) HashPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}

func (u *User) CreateUser(db *sql.DB) error {
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.AuthProvider == "" {
		u.AuthProvider = "local"
	}

	var emailTokenExpiresArg interface{}
	if !u.EmailVerificationTokenExpiresAt.IsZero() {
		emailTokenExpiresArg = u.EmailVerificationTokenExpiresAt
	}

	res, err := db.Exec(`
	INSERT INTO users (username, email, password, auth_provider, is_email_verified, email_verification_token, email_verification_token_expires_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.Password, u.AuthProvider, u.IsEmailVerified,
		nullIfEmpty(u.EmailVerificationToken), emailTokenExpiresArg, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

func GetUserByID(db *sql.DB, id int64) (*User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func GetUserByUsername(db *sql.DB, username string) (*User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func GetUserByEmail(db *sql.DB, email string) (*User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func GetUserByVerificationToken(db *sql.DB, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidVerificationToken
	}
	user, err := scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email_verification_token = ?`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidVerificationToken
	}
	return user, err
}

func GetUserByPasswordResetToken(db *sql.DB, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidResetToken
	}
	user, err := scanUser(db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE password_reset_token = ? AND password_reset_token_expires_at > ?`,
		token, time.Now()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidResetToken
	}
	return user, err
}

func (u *User) UpdateUserVerificationStatus(db *sql.DB, isVerified bool) error {
	u.IsEmailVerified = isVerified
	u.EmailVerificationToken = ""
	u.EmailVerificationTokenExpiresAt = time.Time{}
	u.UpdatedAt = time.Now()

	_, err := db.Exec(`
	UPDATE users
	SET is_email_verified = ?, email_verification_token = NULL, email_verification_token_expires_at = NULL, updated_at = ?
	WHERE id = ?`, u.IsEmailVerified, u.UpdatedAt, u.ID)
	return err
}

func (u *User) UpdateUserVerificationToken(db *sql.DB, token string, expiresAt time.Time) error {
	u.EmailVerificationToken = token
	u.EmailVerificationTokenExpiresAt = expiresAt
	u.UpdatedAt = time.Now()

	_, err := db.Exec(`
	UPDATE users
	SET email_verification_token = ?, email_verification_token_expires_at = ?, updated_at = ?
	WHERE id = ?`, u.EmailVerificationToken, u.EmailVerificationTokenExpiresAt, u.UpdatedAt, u.ID)
	return err
}

// SetPasswordResetToken stores a reset token; an empty token clears it.
func (u *User) SetPasswordResetToken(db *sql.DB, token string, expiresAt time.Time) error {
	u.PasswordResetToken = token
	u.PasswordResetTokenExpiresAt = expiresAt
	u.UpdatedAt = time.Now()

	if token == "" {
		_, err := db.Exec(`
		UPDATE users SET password_reset_token = NULL, password_reset_token_expires_at = NULL, updated_at = ?
		WHERE id = ?`, u.UpdatedAt, u.ID)
		return err
	}
	_, err := db.Exec(`
	UPDATE users SET password_reset_token = ?, password_reset_token_expires_at = ?, updated_at = ?
	WHERE id = ?`, u.PasswordResetToken, u.PasswordResetTokenExpiresAt, u.UpdatedAt, u.ID)
	return err
}

// UpdatePassword stores a new hash and clears any pending reset token.
func (u *User) UpdatePassword(db *sql.DB, newPasswordHash string) error {
	u.Password = newPasswordHash
	u.PasswordResetToken = ""
	u.PasswordResetTokenExpiresAt = time.Time{}
	u.UpdatedAt = time.Now()

	_, err := db.Exec(`
	UPDATE users
	SET password = ?, password_reset_token = NULL, password_reset_token_expires_at = NULL, updated_at = ?
	WHERE id = ?`, u.Password, u.UpdatedAt, u.ID)
	return err
}

// UpdateMfaSecret stores the TOTP secret; MFA stays disabled until UpdateMfaEnabled.
func (u *User) UpdateMfaSecret(db *sql.DB, secret string) error {
	u.MfaSecret = secret
	u.UpdatedAt = time.Now()
	_, err := db.Exec(`UPDATE users SET mfa_secret = ?, updated_at = ? WHERE id = ?`, nullIfEmpty(secret), u.UpdatedAt, u.ID)
	return err
}

func (u *User) UpdateMfaEnabled(db *sql.DB, enabled bool) error {
	u.MfaEnabled = enabled
	u.UpdatedAt = time.Now()
	_, err := db.Exec(`UPDATE users SET mfa_enabled = ?, updated_at = ? WHERE id = ?`, u.MfaEnabled, u.UpdatedAt, u.ID)
	return err
}

// RecordLogin bumps the login counters and appends to login_history in one transaction.
func RecordLogin(db *sql.DB, userID int64, clientIP, userAgent string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.Exec(`
		UPDATE users SET login_count = login_count + 1, last_login_at = ?, last_login_ip = ?
		WHERE id = ?`, now, clientIP, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO login_history (user_id, login_at, ip_address, user_agent) VALUES (?, ?, ?, ?)`,
		userID, now, clientIP, userAgent); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteUser removes the user; positions, imports and sessions cascade.
func DeleteUser(db *sql.DB, userID int64) error {
	res, err := db.Exec(`DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ClearExpiredUserTokens drops verification and reset tokens whose expiry has passed.
func ClearExpiredUserTokens(db *sql.DB, now time.Time) (int64, error) {
	var total int64
	res, err := db.Exec(`
		UPDATE users SET email_verification_token = NULL, email_verification_token_expires_at = NULL
		WHERE email_verification_token IS NOT NULL AND email_verification_token_expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	total += n

	res, err = db.Exec(`
		UPDATE users SET password_reset_token = NULL, password_reset_token_expires_at = NULL
		WHERE password_reset_token IS NOT NULL AND password_reset_token_expires_at < ?`, now)
	if err != nil {
		return total, err
	}
	n, _ = res.RowsAffected()
	return total + n, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
