package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/username/tradejournal/backend/src/logger"
)

type taskFn func(ctx context.Context) error

// Scheduler runs background jobs. A job never overlaps with itself.
type Scheduler struct {
	scheduler gocron.Scheduler
}

func New() (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	return &Scheduler{scheduler: scheduler}, nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
}

func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) createJob(jobDefinition gocron.JobDefinition, name string, fn taskFn, startImmediately bool) error {
	opts := []gocron.JobOption{
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if startImmediately {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	if _, err := s.scheduler.NewJob(jobDefinition, gocron.NewTask(taskWithRecover(fn, name)), opts...); err != nil {
		logger.L.Error("Scheduler creating job error", slog.String("jobName", name), slog.Any("error", err))
		return fmt.Errorf("creating job %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) NewIntervalJob(name string, fn taskFn, interval time.Duration, startImmediately bool) error {
	return s.createJob(gocron.DurationJob(interval), name, fn, startImmediately)
}

func taskWithRecover(fn taskFn, jobName string) func(ctx context.Context) {
	return func(ctx context.Context) {
		log := logger.L.With(slog.String("jobName", jobName))
		defer func() {
			if r := recover(); r != nil {
				log.Error("Panic recovered in scheduler job",
					slog.Any("panic", r),
					slog.String("stacktrace", string(debug.Stack())),
				)
			}
		}()

		start := time.Now()
		log.Debug("job start")
		if err := fn(logger.ToContext(ctx, log)); err != nil {
			log.Error("job failed", slog.Any("error", err))
			return
		}
		log.Info("job completed", slog.Duration("duration", time.Since(start)))
	}
}
