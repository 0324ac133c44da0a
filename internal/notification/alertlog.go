package notification

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breatheroute/aqiguard/internal/aqi"
)

// InMemoryAlertLog is an AlertLog for tests and database-less runs.
type InMemoryAlertLog struct {
	mu     sync.RWMutex
	alerts []SentAlert
}

// NewInMemoryAlertLog creates an empty log.
func NewInMemoryAlertLog() *InMemoryAlertLog {
	return &InMemoryAlertLog{}
}

// Record appends a sent alert.
func (l *InMemoryAlertLog) Record(_ context.Context, a SentAlert) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alerts = append(l.alerts, a)
	return nil
}

// ListBySubject returns a subject's alerts, newest first.
func (l *InMemoryAlertLog) ListBySubject(_ context.Context, subjectID string, limit int) ([]SentAlert, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []SentAlert{}
	for i := len(l.alerts) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if l.alerts[i].SubjectID == subjectID {
			out = append(out, l.alerts[i])
		}
	}
	return out, nil
}

// PostgresAlertLog stores sent alerts in the alerts_sent table.
type PostgresAlertLog struct {
	pool *pgxpool.Pool
}

// NewPostgresAlertLog creates a PostgreSQL alert log.
func NewPostgresAlertLog(pool *pgxpool.Pool) *PostgresAlertLog {
	return &PostgresAlertLog{pool: pool}
}

// Record inserts a sent alert.
func (l *PostgresAlertLog) Record(ctx context.Context, a SentAlert) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO alerts_sent (subject_id, tier, method, sent_at) VALUES ($1, $2, $3, $4)`,
		a.SubjectID, string(a.Tier), string(a.Method), a.SentAt,
	)
	if err != nil {
		return fmt.Errorf("insert sent alert: %w", err)
	}
	return nil
}

// ListBySubject returns a subject's alerts, newest first.
func (l *PostgresAlertLog) ListBySubject(ctx context.Context, subjectID string, limit int) ([]SentAlert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx, `
		SELECT subject_id, tier, method, sent_at
		FROM alerts_sent
		WHERE subject_id = $1
		ORDER BY sent_at DESC
		LIMIT $2`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sent alerts: %w", err)
	}
	defer rows.Close()

	out := []SentAlert{}
	for rows.Next() {
		var (
			a            SentAlert
			tier, method string
		)
		if err := rows.Scan(&a.SubjectID, &tier, &method, &a.SentAt); err != nil {
			return nil, fmt.Errorf("scan sent alert: %w", err)
		}
		a.Tier = aqi.Tier(tier)
		a.Method = Method(method)
		out = append(out, a)
	}
	return out, rows.Err()
}

var (
	_ AlertLog = (*InMemoryAlertLog)(nil)
	_ AlertLog = (*PostgresAlertLog)(nil)
)
