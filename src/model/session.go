package model

import (
	"database/sql"
	"errors"
	"time"
)

type Session struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	UserAgent    string    `json:"user_agent"`
	ClientIP     string    `json:"client_ip"`
	IsBlocked    bool      `json:"is_blocked"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

var ErrSessionNotFound = errors.New("session not found, expired, or blocked")

func CreateSession(db *sql.DB, session *Session) error {
	session.CreatedAt = time.Now()
	res, err := db.Exec(`
	INSERT INTO sessions (user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.UserID, session.Token, session.RefreshToken, session.UserAgent,
		session.ClientIP, session.IsBlocked, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return err
	}
	session.ID, err = res.LastInsertId()
	return err
}

func getSession(db *sql.DB, column, value string) (*Session, error) {
	row := db.QueryRow(`
	SELECT id, user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at
	FROM sessions
	WHERE `+column+` = ? AND is_blocked = FALSE AND expires_at > ?`, value, time.Now())

	var session Session
	var userAgent, clientIP sql.NullString
	err := row.Scan(
		&session.ID, &session.UserID, &session.Token, &session.RefreshToken,
		&userAgent, &clientIP, &session.IsBlocked, &session.ExpiresAt, &session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	session.UserAgent = userAgent.String
	session.ClientIP = clientIP.String
	return &session, nil
}

func GetSessionByToken(db *sql.DB, token string) (*Session, error) {
	return getSession(db, "token", token)
}

func GetSessionByRefreshToken(db *sql.DB, refreshToken string) (*Session, error) {
	return getSession(db, "refresh_token", refreshToken)
}

func DeleteSessionByToken(db *sql.DB, token string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// DeleteSessionByRefreshToken is a no-op when the token is unknown.
func DeleteSessionByRefreshToken(db *sql.DB, refreshToken string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE refresh_token = ?`, refreshToken)
	return err
}

func DeleteSessionsForUser(db *sql.DB, userID int64) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

// DeleteExpiredSessions removes sessions that expired before now.
func DeleteExpiredSessions(db *sql.DB, now time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
