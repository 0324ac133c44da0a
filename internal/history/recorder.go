package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/breatheroute/aqiguard/internal/aqi"
)

// Recorder assigns identity to evaluations and appends them to a Repository.
type Recorder struct {
	repo Repository
	now  func() time.Time
}

// NewRecorder creates a recorder over repo.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, now: time.Now}
}

// Record appends e, filling in ID and EvaluatedAt when unset.
func (r *Recorder) Record(ctx context.Context, e aqi.Evaluation) (string, error) {
	if e.ID == "" {
		e.ID = "eval_" + uuid.NewString()
	}
	if e.EvaluatedAt.IsZero() {
		e.EvaluatedAt = r.now().UTC()
	}
	return r.repo.Append(ctx, e)
}

// ListBySubject returns a subject's evaluations, newest first.
func (r *Recorder) ListBySubject(ctx context.Context, subjectID string, limit int) ([]aqi.Evaluation, error) {
	return r.repo.ListBySubject(ctx, subjectID, limit)
}

// ListNear returns evaluations recorded near a point, newest first.
func (r *Recorder) ListNear(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]aqi.Evaluation, error) {
	return r.repo.ListNear(ctx, lat, lon, radiusMeters, limit)
}
