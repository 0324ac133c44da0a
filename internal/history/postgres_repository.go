package history

import (
	"context"
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breatheroute/aqiguard/internal/aqi"
)

// PostgresRepository stores evaluations in the aqi_evaluations table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL history repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const evaluationColumns = `id, subject_id, latitude, longitude, raw_aqi, personalized_aqi,
	tier, pollutant, degraded, evaluated_at`

// selectColumns omits tier: it is re-derived from personalized_aqi on read.
const selectColumns = `id, subject_id, latitude, longitude, raw_aqi, personalized_aqi,
	pollutant, degraded, evaluated_at`

// Append inserts an evaluation.
func (r *PostgresRepository) Append(ctx context.Context, e aqi.Evaluation) (string, error) {
	if e.ID == "" {
		return "", ErrInvalidEvaluation
	}

	query := `INSERT INTO aqi_evaluations (` + evaluationColumns + `)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.SubjectID, e.Latitude, e.Longitude, e.RawAQI, e.PersonalizedAQI,
		string(e.Tier), string(e.Pollutant), e.Degraded, e.EvaluatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert evaluation: %w", err)
	}
	return e.ID, nil
}

// ListBySubject returns the subject's evaluations, newest first.
func (r *PostgresRepository) ListBySubject(ctx context.Context, subjectID string, limit int) ([]aqi.Evaluation, error) {
	query := `SELECT ` + selectColumns + `
		FROM aqi_evaluations
		WHERE subject_id = $1
		ORDER BY evaluated_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, subjectID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return collectEvaluations(rows)
}

// ListNear prefilters with a latitude/longitude box in SQL and keeps the
// rows inside the exact spherical cap.
func (r *PostgresRepository) ListNear(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]aqi.Evaluation, error) {
	limit = normalizeLimit(limit)
	c := searchCap(lat, lon, radiusMeters)
	box := c.RectBound()

	lngClause, lngLo, lngHi := longitudeFilter(box)
	query := `SELECT ` + selectColumns + `
		FROM aqi_evaluations
		WHERE latitude BETWEEN $1 AND $2
		  AND ` + lngClause + `
		ORDER BY evaluated_at DESC
		LIMIT $5`

	// Fetch extra rows since the box corners fall outside the cap.
	rows, err := r.pool.Query(ctx, query,
		box.Lo().Lat.Degrees(), box.Hi().Lat.Degrees(),
		lngLo, lngHi,
		limit*2,
	)
	if err != nil {
		return nil, fmt.Errorf("list evaluations near: %w", err)
	}
	all, err := collectEvaluations(rows)
	if err != nil {
		return nil, err
	}

	out := make([]aqi.Evaluation, 0, min(limit, len(all)))
	for _, e := range all {
		if len(out) == limit {
			break
		}
		if capContains(c, e.Latitude, e.Longitude) {
			out = append(out, e)
		}
	}
	return out, nil
}

// longitudeFilter returns the longitude predicate over $3 and $4 for box.
// A box crossing the antimeridian has Lo > Hi and matches either side.
func longitudeFilter(box s2.Rect) (clause string, lo, hi float64) {
	lo, hi = box.Lo().Lng.Degrees(), box.Hi().Lng.Degrees()
	if box.Lng.IsInverted() {
		return "(longitude >= $3 OR longitude <= $4)", lo, hi
	}
	return "longitude BETWEEN $3 AND $4", math.Max(lo, -180), math.Min(hi, 180)
}

func collectEvaluations(rows pgx.Rows) ([]aqi.Evaluation, error) {
	defer rows.Close()

	out := []aqi.Evaluation{}
	for rows.Next() {
		var (
			e         aqi.Evaluation
			subjectID *string
			pollutant string
		)
		if err := rows.Scan(
			&e.ID, &subjectID, &e.Latitude, &e.Longitude, &e.RawAQI, &e.PersonalizedAQI,
			&pollutant, &e.Degraded, &e.EvaluatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		if subjectID != nil {
			e.SubjectID = *subjectID
		}
		e.Tier = aqi.Classify(e.PersonalizedAQI)
		e.Pollutant = aqi.Pollutant(pollutant)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return out, nil
}

var _ Repository = (*PostgresRepository)(nil)
