package history

import (
	"context"
	"sort"
	"sync"

	"github.com/breatheroute/aqiguard/internal/aqi"
)

// InMemoryRepository keeps evaluations in per-subject slices. Anonymous
// evaluations share the empty key. Each slice has its own lock; different
// subjects only contend on the index map.
type InMemoryRepository struct {
	mu       sync.RWMutex
	subjects map[string]*subjectLog
}

type subjectLog struct {
	mu      sync.RWMutex
	entries []aqi.Evaluation
}

// NewInMemoryRepository creates an empty in-memory history.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{subjects: make(map[string]*subjectLog)}
}

// Append stores an evaluation under its subject.
func (r *InMemoryRepository) Append(_ context.Context, e aqi.Evaluation) (string, error) {
	if e.ID == "" {
		return "", ErrInvalidEvaluation
	}

	log := r.logFor(e.SubjectID)
	log.mu.Lock()
	log.entries = append(log.entries, e)
	log.mu.Unlock()
	return e.ID, nil
}

func (r *InMemoryRepository) logFor(subjectID string) *subjectLog {
	r.mu.RLock()
	log, ok := r.subjects[subjectID]
	r.mu.RUnlock()
	if ok {
		return log
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if log, ok = r.subjects[subjectID]; !ok {
		log = &subjectLog{}
		r.subjects[subjectID] = log
	}
	return log
}

// ListBySubject returns the subject's evaluations, newest first.
func (r *InMemoryRepository) ListBySubject(_ context.Context, subjectID string, limit int) ([]aqi.Evaluation, error) {
	limit = normalizeLimit(limit)

	r.mu.RLock()
	log, ok := r.subjects[subjectID]
	r.mu.RUnlock()
	if !ok {
		return []aqi.Evaluation{}, nil
	}

	log.mu.RLock()
	defer log.mu.RUnlock()

	n := min(limit, len(log.entries))
	out := make([]aqi.Evaluation, 0, n)
	for i := len(log.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, log.entries[i])
	}
	return out, nil
}

// ListNear returns evaluations within radiusMeters of a point, newest first.
func (r *InMemoryRepository) ListNear(_ context.Context, lat, lon, radiusMeters float64, limit int) ([]aqi.Evaluation, error) {
	limit = normalizeLimit(limit)
	c := searchCap(lat, lon, radiusMeters)

	r.mu.RLock()
	logs := make([]*subjectLog, 0, len(r.subjects))
	for _, log := range r.subjects {
		logs = append(logs, log)
	}
	r.mu.RUnlock()

	var out []aqi.Evaluation
	for _, log := range logs {
		log.mu.RLock()
		for _, e := range log.entries {
			if capContains(c, e.Latitude, e.Longitude) {
				out = append(out, e)
			}
		}
		log.mu.RUnlock()
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EvaluatedAt.After(out[j].EvaluatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []aqi.Evaluation{}
	}
	return out, nil
}

var _ Repository = (*InMemoryRepository)(nil)
