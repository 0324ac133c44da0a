package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/breatheroute/aqiguard/internal/pipeline"
	"github.com/breatheroute/aqiguard/internal/user"
)

// Evaluator runs the personalization pipeline.
type Evaluator interface {
	Evaluate(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Subjects lists users and loads their stored location.
type Subjects interface {
	ListIDs(ctx context.Context) ([]string, error)
	Get(ctx context.Context, userID string) (*user.User, error)
}

// EvaluateJob re-evaluates subjects at their stored location. The pipeline
// sends alerts for subjects whose personalized AQI crosses the threshold.
type EvaluateJob struct {
	evaluator Evaluator
	subjects  Subjects
	config    Config
	metrics   *Metrics
	logger    zerolog.Logger
}

// EvaluateJobConfig holds configuration for creating an EvaluateJob.
type EvaluateJobConfig struct {
	Evaluator Evaluator
	Subjects  Subjects
	Config    Config
	Metrics   *Metrics // optional
	Logger    zerolog.Logger
}

// NewEvaluateJob creates a new evaluation job.
func NewEvaluateJob(cfg EvaluateJobConfig) *EvaluateJob {
	return &EvaluateJob{
		evaluator: cfg.Evaluator,
		subjects:  cfg.Subjects,
		config:    cfg.Config.withDefaults(),
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// EvaluateResult summarizes one run.
type EvaluateResult struct {
	Duration  time.Duration
	Total     int
	Evaluated int
	// Skipped counts subjects with no location or no health profile.
	Skipped int
	Failed  int
	Alerted int
}

// subject outcomes
const (
	outcomeEvaluated = "evaluated"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"
)

// Run evaluates subjectIDs, or every subject when the list is empty. One
// subject failing never stops the others; Run only fails when the subject
// list cannot be loaded or ctx ends.
func (j *EvaluateJob) Run(ctx context.Context, subjectIDs []string) (EvaluateResult, error) {
	start := time.Now()
	var result EvaluateResult

	ids := subjectIDs
	if len(ids) == 0 {
		var err error
		ids, err = j.subjects.ListIDs(ctx)
		if err != nil {
			return result, err
		}
	}
	result.Total = len(ids)

	j.logger.Info().
		Int("subjects", len(ids)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting subject evaluation")

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)

	for _, id := range ids {
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			outcome, alerted := j.evaluate(gCtx, id)
			j.metrics.recordSubject(gCtx, outcome)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeEvaluated:
				result.Evaluated++
			case outcomeSkipped:
				result.Skipped++
			default:
				result.Failed++
			}
			if alerted {
				result.Alerted++
			}
			return nil
		})
	}
	err := g.Wait()
	result.Duration = time.Since(start)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("evaluated", result.Evaluated).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Int("alerted", result.Alerted).
		Msg("subject evaluation completed")

	return result, err
}

func (j *EvaluateJob) evaluate(ctx context.Context, subjectID string) (outcome string, alerted bool) {
	ctx, cancel := context.WithTimeout(ctx, j.config.SubjectTimeout)
	defer cancel()
	logger := j.logger.With().Str("subject_id", subjectID).Logger()

	u, err := j.subjects.Get(ctx, subjectID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return outcomeSkipped, false
		}
		logger.Error().Err(err).Msg("failed to load subject")
		return outcomeFailed, false
	}

	req := pipeline.Request{SubjectID: subjectID, City: u.City, Policy: pipeline.ProfileRequired}
	if u.Home != nil {
		req.Lat, req.Lon, req.HasCoordinates = u.Home.Lat, u.Home.Lon, true
	}
	if !req.HasCoordinates && req.City == "" {
		logger.Debug().Msg("subject has no stored location")
		return outcomeSkipped, false
	}

	res, err := j.evaluator.Evaluate(ctx, req)
	switch {
	case errors.Is(err, pipeline.ErrProfileNotFound):
		return outcomeSkipped, false
	case err != nil:
		logger.Warn().Err(err).Msg("subject evaluation failed")
		return outcomeFailed, false
	}

	notified, ok := res.Outcome(pipeline.StageNotified)
	return outcomeEvaluated, ok && notified.Status == pipeline.StatusOK
}
