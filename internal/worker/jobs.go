package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiguard/internal/notification"
)

// ErrUnknownJob is returned for a job type the worker does not handle.
var ErrUnknownJob = errors.New("unknown job type")

// Job is the payload of a job message.
type Job struct {
	JobType string `json:"job_type"`
	// SubjectIDs limits evaluate_subjects; empty means every subject.
	SubjectIDs []string `json:"subject_ids,omitempty"`
}

// Redeliverer drains the notification fallback store.
type Redeliverer interface {
	Run(ctx context.Context) (notification.RedeliverResult, error)
}

// Runner executes jobs by type. It is shared by the Pub/Sub handler and the
// scheduler.
type Runner struct {
	evaluate  *EvaluateJob
	redeliver Redeliverer
	metrics   *Metrics
	logger    zerolog.Logger
}

// NewRunner creates a runner. redeliver may be nil when no fallback store
// is configured.
func NewRunner(evaluate *EvaluateJob, redeliver Redeliverer, metrics *Metrics, logger zerolog.Logger) *Runner {
	return &Runner{evaluate: evaluate, redeliver: redeliver, metrics: metrics, logger: logger}
}

// Handle decodes and runs one job message.
func (r *Runner) Handle(ctx context.Context, data []byte) error {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}
	return r.Run(ctx, job)
}

// Run executes job.
func (r *Runner) Run(ctx context.Context, job Job) error {
	start := time.Now()
	var err error

	switch job.JobType {
	case JobEvaluateSubjects:
		var res EvaluateResult
		res, err = r.evaluate.Run(ctx, job.SubjectIDs)
		if err == nil && res.Failed > 0 && res.Failed == res.Total {
			err = fmt.Errorf("all %d subject evaluations failed", res.Total)
		}
	case JobRedeliverFallback:
		err = r.runRedelivery(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, job.JobType)
	}

	r.metrics.recordJob(ctx, job.JobType, time.Since(start).Seconds(), err)
	return err
}

func (r *Runner) runRedelivery(ctx context.Context) error {
	if r.redeliver == nil {
		r.logger.Debug().Msg("no fallback store configured, skipping redelivery")
		return nil
	}

	res, err := r.redeliver.Run(ctx)
	r.logger.Info().
		Int("delivered", res.Delivered).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("fallback redelivery completed")
	return err
}

// isDecodeError reports whether err came from decoding a job payload.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
