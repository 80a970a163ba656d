package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"hn_insight/internal/config"
	"hn_insight/internal/domain"
	"hn_insight/internal/service"
)

const DefaultRunTimeout = 5 * time.Minute

// Runner defines the jobs the scheduler can trigger.
type Runner interface {
	Refresh(ctx context.Context) (*domain.RefreshStats, error)
	Process(ctx context.Context) (*domain.ProcessResult, error)
	Retry(ctx context.Context) (*domain.RetryStats, error)
}

type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *slog.Logger
	ctx     context.Context
}

// NewScheduler registers every job that has a cron expression. Jobs with an
// empty expression are left out.
func NewScheduler(runner Runner, cfg config.ScheduleConfig, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
		logger:  logger.With("component", "scheduler"),
		ctx:     context.Background(),
	}

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{service.JobFetchStories, cfg.Fetch, func(ctx context.Context) error {
			_, err := runner.Refresh(ctx)
			return err
		}},
		{service.JobProcessNews, cfg.Process, func(ctx context.Context) error {
			_, err := runner.Process(ctx)
			return err
		}},
		{service.JobRetrySummaries, cfg.Retry, func(ctx context.Context) error {
			_, err := runner.Retry(ctx)
			return err
		}},
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, func() { s.runJob(job.name, job.run) }); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", job.name, err)
		}
		s.logger.Info("job scheduled", "job", job.name, "spec", job.spec)
	}

	return s, nil
}

func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start runs the cron loop until ctx is done, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", s.Len())

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) runJob(name string, run func(ctx context.Context) error) {
	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	err := run(runCtx)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrJobLocked):
		s.logger.Info("job skipped, already running elsewhere", "job", name)
	default:
		s.logger.Error("job failed", "job", name, "error", err)
	}
}
