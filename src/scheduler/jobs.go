package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/model"
)

// JobsConfig holds the intervals of the maintenance jobs. A zero interval disables the job.
type JobsConfig struct {
	SessionCleanupInterval time.Duration
	PriceCleanupInterval   time.Duration
	PriceRetention         time.Duration
}

// SessionCleanup deletes expired sessions and clears expired verification and reset tokens.
func SessionCleanup(db *sql.DB, now func() time.Time) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		t := now()
		sessions, err := model.DeleteExpiredSessions(db, t)
		if err != nil {
			return fmt.Errorf("deleting expired sessions: %w", err)
		}
		tokens, err := model.ClearExpiredUserTokens(db, t)
		if err != nil {
			return fmt.Errorf("clearing expired user tokens: %w", err)
		}
		logger.FromContext(ctx).Info("Expired sessions purged", "sessions", sessions, "tokens", tokens)
		return nil
	}
}

// PriceCleanup drops stored daily closes older than the retention window.
func PriceCleanup(db *sql.DB, retention time.Duration, now func() time.Time) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		cutoff := now().Add(-retention).Format("2006-01-02")
		deleted, err := model.DeleteDailyPricesBefore(db, cutoff)
		if err != nil {
			return fmt.Errorf("deleting daily prices before %s: %w", cutoff, err)
		}
		logger.FromContext(ctx).Info("Old daily prices purged", "cutoff", cutoff, "deleted", deleted)
		return nil
	}
}

// RegisterMaintenanceJobs adds the cleanup jobs to s.
func RegisterMaintenanceJobs(s *Scheduler, db *sql.DB, cfg JobsConfig) error {
	if cfg.SessionCleanupInterval > 0 {
		if err := s.NewIntervalJob("session-cleanup", SessionCleanup(db, time.Now), cfg.SessionCleanupInterval, true); err != nil {
			return err
		}
	}
	if cfg.PriceCleanupInterval > 0 && cfg.PriceRetention > 0 {
		if err := s.NewIntervalJob("price-cleanup", PriceCleanup(db, cfg.PriceRetention, time.Now), cfg.PriceCleanupInterval, false); err != nil {
			return err
		}
	}
	return nil
}
