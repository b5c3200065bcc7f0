package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classforge/backend/internal/models"
)

const sessionColumns = `id, title, meeting_id, meeting_instance_id, batch_id, bootcamp_id,
	creator_email, starts_at, ends_at, status, COALESCE(recording_link,''), invited_roster,
	is_conference, created_at, updated_at`

// Repository handles session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	var roster []byte
	err := row.Scan(&s.ID, &s.Title, &s.MeetingID, &s.MeetingInstanceID, &s.BatchID, &s.BootcampID,
		&s.CreatorEmail, &s.StartsAt, &s.EndsAt, &s.Status, &s.RecordingLink, &roster,
		&s.IsConference, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(roster) > 0 {
		if err := json.Unmarshal(roster, &s.InvitedRoster); err != nil {
			return nil, fmt.Errorf("decode invited roster: %w", err)
		}
	}
	return &s, nil
}

// Create inserts a session with its invited-roster snapshot.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	roster, err := json.Marshal(s.InvitedRoster)
	if err != nil {
		return fmt.Errorf("encode invited roster: %w", err)
	}
	const q = `INSERT INTO sessions (id, title, meeting_id, meeting_instance_id, batch_id, bootcamp_id,
			creator_email, starts_at, ends_at, status, invited_roster, is_conference)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.Title, s.MeetingID, s.MeetingInstanceID, s.BatchID, s.BootcampID,
		s.CreatorEmail, s.StartsAt, s.EndsAt, s.Status, roster, s.IsConference).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a session by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	s, err := scanSession(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListByBatch returns sessions for one cohort, newest first.
func (r *Repository) ListByBatch(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]models.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE batch_id = $1
		ORDER BY starts_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, q, batchID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// ListUnfinalized returns completed sessions that still lack a recording link,
// i.e. the candidates for attendance finalization and recording resolution.
func (r *Repository) ListUnfinalized(ctx context.Context) ([]models.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE status = $1 AND recording_link IS NULL
		ORDER BY ends_at ASC`
	rows, err := r.pool.Query(ctx, q, models.SessionStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// UpdateRecordingLink sets the durable recording link on a session.
func (r *Repository) UpdateRecordingLink(ctx context.Context, id uuid.UUID, link string) error {
	const q = `UPDATE sessions SET recording_link = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, link, id)
	return err
}

// ReclassifyStatuses moves sessions through upcoming → ongoing → completed
// based on the wall clock.
func (r *Repository) ReclassifyStatuses(ctx context.Context, now time.Time) error {
	const q = `UPDATE sessions SET status = CASE
			WHEN ends_at <= $1 THEN 'completed'
			WHEN starts_at <= $1 THEN 'ongoing'
			ELSE 'upcoming'
		END, updated_at = NOW()
		WHERE status <> CASE
			WHEN ends_at <= $1 THEN 'completed'
			WHEN starts_at <= $1 THEN 'ongoing'
			ELSE 'upcoming'
		END`
	_, err := r.pool.Exec(ctx, q, now)
	return err
}

// IncrementAttendedCounts bumps the present-streak counter for the given
// students in one cohort.
func (r *Repository) IncrementAttendedCounts(ctx context.Context, batchID uuid.UUID, emails []string) error {
	if len(emails) == 0 {
		return nil
	}
	const q = `UPDATE enrollments SET attended_count = attended_count + 1
		WHERE batch_id = $1 AND email = ANY($2)`
	_, err := r.pool.Exec(ctx, q, batchID, emails)
	return err
}
