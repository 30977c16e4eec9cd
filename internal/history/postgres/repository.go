package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sqlassist/sqlassist/internal/history"
)

const maxListLimit = 1000

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

var _ history.Store = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

// Record inserts rec, assigning an ID and timestamp when they are unset.
func (r *Repository) Record(ctx context.Context, rec history.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}

	query := `
INSERT INTO conversion_history (record_id, session_id, question, backend, model, table_count, generated_sql, error_kind, error_message, latency_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.SessionID,
		rec.Question,
		rec.Backend,
		rec.Model,
		rec.TableCount,
		nullString(rec.SQL),
		nullString(rec.ErrorKind),
		nullString(rec.ErrorMessage),
		rec.LatencyMs,
		rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert conversion record: %w", err)
	}
	return nil
}

// ListRecent returns up to limit records, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]history.Record, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT record_id, session_id, question, backend, model, table_count, generated_sql, error_kind, error_message, latency_ms, created_at
FROM conversion_history
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversion records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]history.Record, 0)
	for rows.Next() {
		var (
			rec          history.Record
			generatedSQL sql.NullString
			errorKind    sql.NullString
			errorMessage sql.NullString
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.Question,
			&rec.Backend,
			&rec.Model,
			&rec.TableCount,
			&generatedSQL,
			&errorKind,
			&errorMessage,
			&rec.LatencyMs,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversion record: %w", err)
		}
		rec.SQL = generatedSQL.String
		rec.ErrorKind = errorKind.String
		rec.ErrorMessage = errorMessage.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversion records: %w", err)
	}
	return records, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
