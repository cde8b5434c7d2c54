package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradejournal/backend/src/database"
	"github.com/username/tradejournal/backend/src/model"
	"github.com/username/tradejournal/backend/src/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "scheduler.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func TestSessionCleanup(t *testing.T) {
	db := newTestDB(t)
	user := &model.User{Username: "u", Email: "u@example.com", Password: "x"}
	require.NoError(t, user.CreateUser(db))

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, model.CreateSession(db, &model.Session{UserID: user.ID, Token: "old", RefreshToken: "old-r", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, model.CreateSession(db, &model.Session{UserID: user.ID, Token: "new", RefreshToken: "new-r", ExpiresAt: now.Add(time.Hour)}))

	job := SessionCleanup(db, func() time.Time { return now })
	require.NoError(t, job(context.Background()))

	var remaining []string
	rows, err := db.Query(`SELECT token FROM sessions`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var token string
		require.NoError(t, rows.Scan(&token))
		remaining = append(remaining, token)
	}
	assert.Equal(t, []string{"new"}, remaining)
}

func TestPriceCleanup(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, model.SaveDailyPrices(db, "AAPL", []models.PricePoint{
		{Date: "2023-01-03", Close: decimal.NewFromInt(125)},
		{Date: "2024-05-31", Close: decimal.NewFromInt(190)},
	}))

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	job := PriceCleanup(db, 90*24*time.Hour, func() time.Time { return now })
	require.NoError(t, job(context.Background()))

	points, err := model.GetDailyPrices(db, "AAPL", "")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "2024-05-31", points[0].Date)
}

func TestTaskWithRecoverSurvivesPanicsAndErrors(t *testing.T) {
	assert.NotPanics(t, func() {
		taskWithRecover(func(ctx context.Context) error { panic("boom") }, "panicky")(context.Background())
	})
	assert.NotPanics(t, func() {
		taskWithRecover(func(ctx context.Context) error { return errors.New("failed") }, "failing")(context.Background())
	})
}

func TestIntervalJobStartsImmediately(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	ran := make(chan struct{}, 1)
	require.NoError(t, s.NewIntervalJob("probe", func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}, time.Hour, true))

	s.Start()
	defer func() { require.NoError(t, s.Stop()) }()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
}
