// Package history keeps the append-only log of AQI evaluations.
package history

import (
	"context"
	"errors"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/breatheroute/aqiguard/internal/aqi"
)

// ErrInvalidEvaluation is returned when an evaluation cannot be stored.
var ErrInvalidEvaluation = errors.New("evaluation has no id")

// DefaultListLimit bounds list queries that do not specify a limit.
const DefaultListLimit = 50

// MaxListLimit is the largest page a list query may return.
const MaxListLimit = 500

// DefaultNearRadiusMeters is the search radius when a nearby query gives none.
const DefaultNearRadiusMeters = 1000

// MaxNearRadiusMeters bounds nearby queries.
const MaxNearRadiusMeters = 50000

// earthRadiusMeters matches the radius used for station distances.
const earthRadiusMeters = 6371008.8

// Repository persists evaluations. Records are never updated or deleted.
type Repository interface {
	// Append stores a new evaluation and returns its ID.
	Append(ctx context.Context, e aqi.Evaluation) (string, error)

	// ListBySubject returns a subject's evaluations, newest first.
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]aqi.Evaluation, error)

	// ListNear returns evaluations within radiusMeters of a point, newest first.
	ListNear(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]aqi.Evaluation, error)
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

// searchCap is the spherical cap covering radiusMeters around a point.
func searchCap(lat, lon, radiusMeters float64) s2.Cap {
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	return s2.CapFromCenterAngle(center, s1.Angle(radiusMeters/earthRadiusMeters))
}

func capContains(c s2.Cap, lat, lon float64) bool {
	return c.ContainsPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon)))
}
