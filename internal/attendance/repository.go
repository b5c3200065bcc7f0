package attendance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classforge/backend/internal/models"
)

// Repository handles attendance record persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ReplaceForSession swaps the full record set for a session in one
// transaction, so a recompute is all-or-nothing and never leaves a partial
// sheet behind.
func (r *Repository) ReplaceForSession(ctx context.Context, sessionID uuid.UUID, records []models.AttendanceRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM attendance_records WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear previous records: %w", err)
	}
	const q = `INSERT INTO attendance_records (id, session_id, email, duration_seconds, verdict, computed_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)`
	for _, rec := range records {
		if _, err := tx.Exec(ctx, q, sessionID, rec.Email, rec.DurationSeconds, rec.Verdict, rec.ComputedAt); err != nil {
			return fmt.Errorf("insert record for %s: %w", rec.Email, err)
		}
	}
	return tx.Commit(ctx)
}

// ListBySession returns the persisted sheet for a session, ordered by email.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.AttendanceRecord, error) {
	const q = `SELECT id, session_id, email, duration_seconds, verdict, computed_at
		FROM attendance_records WHERE session_id = $1 ORDER BY email`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Email, &rec.DurationSeconds, &rec.Verdict, &rec.ComputedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// ExistsForSession reports whether any sheet was already computed for a session.
func (r *Repository) ExistsForSession(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attendance_records WHERE session_id = $1)`, sessionID).Scan(&exists)
	return exists, err
}
