package notification

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/breatheroute/aqiguard/internal/aqi"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS failed_messages (
	id          TEXT PRIMARY KEY,
	subject_id  TEXT NOT NULL,
	channel     TEXT NOT NULL,
	destination TEXT NOT NULL,
	subject     TEXT NOT NULL,
	body        TEXT NOT NULL,
	tier        TEXT NOT NULL,
	last_error  TEXT NOT NULL,
	attempts    INTEGER NOT NULL,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_failed_messages_pending ON failed_messages(attempts, created_at);
`

// SQLiteStore is a FallbackStore in an embedded SQLite database, so
// undelivered alerts survive restarts without depending on PostgreSQL.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single writer avoids SQLITE_BUSY under concurrent dispatches.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", sqliteSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save inserts a record.
func (s *SQLiteStore) Save(ctx context.Context, f FailedMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failed_messages
			(id, subject_id, channel, destination, subject, body, tier, last_error, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.SubjectID, string(f.Channel), f.Destination, f.Subject, f.Body, string(f.Tier),
		f.LastError, f.Attempts, f.CreatedAt.UnixNano(), f.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert failed message: %w", err)
	}
	return nil
}

// List returns up to limit records below maxAttempts, oldest first.
func (s *SQLiteStore) List(ctx context.Context, limit, maxAttempts int) ([]FailedMessage, error) {
	if limit <= 0 {
		limit = -1
	}
	if maxAttempts <= 0 {
		maxAttempts = math.MaxInt32
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, channel, destination, subject, body, tier, last_error, attempts, created_at, updated_at
		FROM failed_messages
		WHERE attempts < ?
		ORDER BY created_at, id
		LIMIT ?`, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed messages: %w", err)
	}
	defer rows.Close()

	out := []FailedMessage{}
	for rows.Next() {
		var (
			f                    FailedMessage
			channel, tier        string
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&f.ID, &f.SubjectID, &channel, &f.Destination, &f.Subject, &f.Body,
			&tier, &f.LastError, &f.Attempts, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan failed message: %w", err)
		}
		f.Channel = Method(channel)
		f.Tier = aqi.Tier(tier)
		f.CreatedAt = time.Unix(0, createdAt).UTC()
		f.UpdatedAt = time.Unix(0, updatedAt).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}

// RecordAttempt increments the attempt counter of a record.
func (s *SQLiteStore) RecordAttempt(ctx context.Context, id, lastErr string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE failed_messages
		SET attempts = attempts + 1, last_error = ?, updated_at = ?
		WHERE id = ?`,
		lastErr, time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("update failed message: %w", err)
	}
	return requireOneRow(res)
}

// Delete removes a record.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM failed_messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete failed message: %w", err)
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFallbackNotFound
	}
	return nil
}

var _ FallbackStore = (*SQLiteStore)(nil)
