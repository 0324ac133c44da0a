package worker

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Scheduler triggers jobs on fixed intervals when no external scheduler
// publishes them.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    *Runner
	config    Config
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler for runner.
func NewScheduler(runner *Runner, cfg Config, logger zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	s.WaitForScheduleAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		config:    cfg,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start registers the enabled jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	if err := s.every(s.config.RedeliveryInterval, JobRedeliverFallback); err != nil {
		return err
	}
	if err := s.every(s.config.SweepInterval, JobEvaluateSubjects); err != nil {
		return err
	}
	if len(s.scheduler.Jobs()) == 0 {
		s.logger.Info().Msg("scheduler: no jobs enabled")
		return nil
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) every(interval time.Duration, jobType string) error {
	if interval <= 0 {
		return nil
	}
	_, err := s.scheduler.Every(interval).Tag(jobType).Do(func() {
		if err := s.runner.Run(s.ctx, Job{JobType: jobType}); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Str("job_type", jobType).Msg("scheduled job failed")
		}
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("job_type", jobType).Dur("interval", interval).Msg("scheduled job")
	return nil
}

// Stop cancels running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}
