package model

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/username/tradejournal/backend/src/models"
)

// DailyPrice represents a cached close for a ticker on a specific day.
type DailyPrice struct {
	Ticker    string          `db:"ticker"`
	Date      string          `db:"date"` // YYYY-MM-DD
	Close     decimal.Decimal `db:"close"`
	FetchedAt time.Time       `db:"fetched_at"`
}

// GetDailyPrices returns the cached closes of ticker dated on or after from, oldest first.
func GetDailyPrices(db *sql.DB, ticker, from string) ([]models.PricePoint, error) {
	var rows []DailyPrice
	err := sqlx.NewDb(db, "sqlite").Select(&rows,
		`SELECT ticker, date, close, fetched_at FROM daily_prices WHERE ticker = ? AND date >= ? ORDER BY date ASC`,
		ticker, from)
	if err != nil {
		return nil, err
	}

	points := make([]models.PricePoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, models.PricePoint{Date: r.Date, Close: r.Close})
	}
	return points, nil
}

// GetLatestPriceFetch returns when ticker was last refreshed, or the zero time when it never was.
func GetLatestPriceFetch(db *sql.DB, ticker string) (time.Time, error) {
	var fetched sql.NullTime
	err := db.QueryRow(`SELECT fetched_at FROM daily_prices WHERE ticker = ? ORDER BY fetched_at DESC LIMIT 1`, ticker).Scan(&fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return fetched.Time, nil
}

// SaveDailyPrices upserts a batch of closes for one ticker in a single transaction.
func SaveDailyPrices(db *sql.DB, ticker string, points []models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (ticker, date, close, fetched_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET close = excluded.close, fetched_at = excluded.fetched_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range points {
		if _, err := stmt.Exec(ticker, p.Date, p.Close, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteDailyPricesBefore removes closes older than cutoff and returns how many rows went away.
func DeleteDailyPricesBefore(db *sql.DB, cutoff string) (int64, error) {
	res, err := db.Exec(`DELETE FROM daily_prices WHERE date < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
