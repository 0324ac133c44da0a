package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores users in the users table and health profiles
// in health_profiles (one row per user, optional).
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL user repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves a user and, if present, their health profile.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT
			u.user_id, u.name, u.email, u.city, u.state, u.home_lat, u.home_lon,
			u.consent_email_alerts, u.consent_push_alerts, u.consents_updated_at,
			u.created_at, u.updated_at,
			h.has_asthma, h.has_copd, h.has_allergies, h.is_smoker, h.high_sensitivity,
			h.created_at, h.updated_at
		FROM users u
		LEFT JOIN health_profiles h ON h.user_id = u.user_id
		WHERE u.user_id = $1
	`

	var (
		u                                        User
		homeLat, homeLon                         *float64
		asthma, copd, allergies, smoker, highSen *bool
		healthCreatedAt, healthUpdatedAt         *time.Time
	)

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Name, &u.Email, &u.City, &u.State, &homeLat, &homeLon,
		&u.Consents.EmailAlerts, &u.Consents.PushAlerts, &u.Consents.UpdatedAt,
		&u.CreatedAt, &u.UpdatedAt,
		&asthma, &copd, &allergies, &smoker, &highSen,
		&healthCreatedAt, &healthUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if homeLat != nil && homeLon != nil {
		u.Home = &Coordinates{Lat: *homeLat, Lon: *homeLon}
	}
	if healthCreatedAt != nil {
		u.Health = &HealthProfile{CreatedAt: *healthCreatedAt, UpdatedAt: *healthUpdatedAt}
		u.Health.HasAsthma = *asthma
		u.Health.HasCOPD = *copd
		u.Health.HasAllergies = *allergies
		u.Health.IsSmoker = *smoker
		u.Health.HighSensitivity = *highSen
	}
	return &u, nil
}

// Create inserts a user and their health profile, if any.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (
				user_id, name, email, city, state, home_lat, home_lon,
				consent_email_alerts, consent_push_alerts, consents_updated_at,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			u.ID, u.Name, u.Email, u.City, u.State, homeLat(u), homeLon(u),
			u.Consents.EmailAlerts, u.Consents.PushAlerts, u.Consents.UpdatedAt,
			u.CreatedAt, u.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		return upsertHealth(ctx, tx, u)
	})
}

// Update replaces the user row and upserts the health profile.
func (r *PostgresRepository) Update(ctx context.Context, u *User) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE users SET
				name = $2, email = $3, city = $4, state = $5, home_lat = $6, home_lon = $7,
				consent_email_alerts = $8, consent_push_alerts = $9, consents_updated_at = $10,
				updated_at = $11
			WHERE user_id = $1
		`,
			u.ID, u.Name, u.Email, u.City, u.State, homeLat(u), homeLon(u),
			u.Consents.EmailAlerts, u.Consents.PushAlerts, u.Consents.UpdatedAt,
			u.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		return upsertHealth(ctx, tx, u)
	})
}

// ListIDs returns every user ID in ascending order.
func (r *PostgresRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return ids, nil
}

func upsertHealth(ctx context.Context, tx pgx.Tx, u *User) error {
	if u.Health == nil {
		return nil
	}
	h := u.Health
	_, err := tx.Exec(ctx, `
		INSERT INTO health_profiles (
			user_id, has_asthma, has_copd, has_allergies, is_smoker, high_sensitivity,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			has_asthma = EXCLUDED.has_asthma,
			has_copd = EXCLUDED.has_copd,
			has_allergies = EXCLUDED.has_allergies,
			is_smoker = EXCLUDED.is_smoker,
			high_sensitivity = EXCLUDED.high_sensitivity,
			updated_at = EXCLUDED.updated_at
	`,
		u.ID, h.HasAsthma, h.HasCOPD, h.HasAllergies, h.IsSmoker, h.HighSensitivity,
		h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert health profile: %w", err)
	}
	return nil
}

func homeLat(u *User) *float64 {
	if u.Home == nil {
		return nil
	}
	return &u.Home.Lat
}

func homeLon(u *User) *float64 {
	if u.Home == nil {
		return nil
	}
	return &u.Home.Lon
}
