package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classforge/backend/internal/models"
)

const jobColumns = `id, session_id, meeting_id, meeting_instance_id, COALESCE(recording_file_id,''),
	status, retry_count, COALESCE(last_error,''), COALESCE(durable_link,''), created_at, updated_at`

// Claim is one exclusively held job. The row lock is held until Finish or
// Close, so no concurrent worker can advance the same job.
type Claim interface {
	Job() *models.RecordingJob
	SetMetadataReady(ctx context.Context, recordingFileID string) error
	SetDownloading(ctx context.Context) error
	SetCompleted(ctx context.Context, durableLink string) error
	SetFailed(ctx context.Context, msg string) error
	SetDead(ctx context.Context, msg string) error
	Finish(ctx context.Context) error
	Close(ctx context.Context)
}

// Repository handles recording job persistence and claiming.
type Repository struct {
	pool         *pgxpool.Pool
	retryCeiling int
}

// NewRepository creates a jobs repository. retryCeiling bounds how often a
// failed job re-enters the claimable pool.
func NewRepository(pool *pgxpool.Pool, retryCeiling int) *Repository {
	return &Repository{pool: pool, retryCeiling: retryCeiling}
}

// CreateForSession inserts a new discovered job for a session. A session has
// at most one job; re-triggering an existing one is a no-op.
func (r *Repository) CreateForSession(ctx context.Context, s *models.Session) (*models.RecordingJob, error) {
	const q = `INSERT INTO recording_jobs (id, session_id, meeting_id, meeting_instance_id, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		ON CONFLICT (session_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, s.ID, s.MeetingID, s.MeetingInstanceID, models.JobStatusDiscovered)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return r.GetBySessionID(ctx, s.ID)
}

// GetBySessionID returns the job for a session, or nil when absent.
func (r *Repository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*models.RecordingJob, error) {
	q := `SELECT ` + jobColumns + ` FROM recording_jobs WHERE session_id = $1`
	var j models.RecordingJob
	err := r.pool.QueryRow(ctx, q, sessionID).Scan(&j.ID, &j.SessionID, &j.MeetingID, &j.MeetingInstanceID,
		&j.RecordingFileID, &j.Status, &j.RetryCount, &j.LastError, &j.DurableLink, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

// ClaimNext locks one eligible job row, skipping rows already locked by a
// concurrent worker, so horizontal scaling never hands two workers the same
// job. Returns nil when nothing is claimable. No ordering guarantee beyond
// "some eligible row".
func (r *Repository) ClaimNext(ctx context.Context) (Claim, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}

	q := `SELECT ` + jobColumns + ` FROM recording_jobs
		WHERE status = ANY($1) AND retry_count < $2
		FOR UPDATE SKIP LOCKED
		LIMIT 1`
	claimable := []string{
		string(models.JobStatusDiscovered),
		string(models.JobStatusMetadataReady),
		string(models.JobStatusDownloading),
		string(models.JobStatusFailed),
	}
	var j models.RecordingJob
	err = tx.QueryRow(ctx, q, claimable, r.retryCeiling).Scan(&j.ID, &j.SessionID, &j.MeetingID,
		&j.MeetingInstanceID, &j.RecordingFileID, &j.Status, &j.RetryCount, &j.LastError, &j.DurableLink,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("select claimable job: %w", err)
	}
	return &claimedJob{job: j, tx: tx}, nil
}

// claimedJob holds the claim transaction; all updates run inside it and land
// atomically on Finish.
type claimedJob struct {
	job      models.RecordingJob
	tx       pgx.Tx
	finished bool
}

func (c *claimedJob) Job() *models.RecordingJob { return &c.job }

func (c *claimedJob) SetMetadataReady(ctx context.Context, recordingFileID string) error {
	const q = `UPDATE recording_jobs SET recording_file_id = $1, status = $2, updated_at = NOW() WHERE id = $3`
	_, err := c.tx.Exec(ctx, q, recordingFileID, models.JobStatusMetadataReady, c.job.ID)
	if err == nil {
		c.job.RecordingFileID = recordingFileID
		c.job.Status = models.JobStatusMetadataReady
	}
	return err
}

func (c *claimedJob) SetDownloading(ctx context.Context) error {
	const q = `UPDATE recording_jobs SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := c.tx.Exec(ctx, q, models.JobStatusDownloading, c.job.ID)
	if err == nil {
		c.job.Status = models.JobStatusDownloading
	}
	return err
}

func (c *claimedJob) SetCompleted(ctx context.Context, durableLink string) error {
	const q = `UPDATE recording_jobs SET status = $1, durable_link = $2, last_error = NULL, updated_at = NOW() WHERE id = $3`
	_, err := c.tx.Exec(ctx, q, models.JobStatusCompleted, durableLink, c.job.ID)
	if err == nil {
		c.job.Status = models.JobStatusCompleted
		c.job.DurableLink = durableLink
	}
	return err
}

func (c *claimedJob) SetFailed(ctx context.Context, msg string) error {
	const q = `UPDATE recording_jobs SET status = $1, retry_count = retry_count + 1, last_error = $2, updated_at = NOW() WHERE id = $3`
	_, err := c.tx.Exec(ctx, q, models.JobStatusFailed, msg, c.job.ID)
	if err == nil {
		c.job.Status = models.JobStatusFailed
		c.job.RetryCount++
		c.job.LastError = msg
	}
	return err
}

func (c *claimedJob) SetDead(ctx context.Context, msg string) error {
	const q = `UPDATE recording_jobs SET status = $1, retry_count = retry_count + 1, last_error = $2, updated_at = NOW() WHERE id = $3`
	_, err := c.tx.Exec(ctx, q, models.JobStatusDead, msg, c.job.ID)
	if err == nil {
		c.job.Status = models.JobStatusDead
		c.job.RetryCount++
		c.job.LastError = msg
	}
	return err
}

// Finish commits the claim; the row lock is released with the commit.
func (c *claimedJob) Finish(ctx context.Context) error {
	c.finished = true
	return c.tx.Commit(ctx)
}

// Close rolls the claim back if it was never finished (crash-only: the job is
// left at its pre-step status and re-claimed later).
func (c *claimedJob) Close(ctx context.Context) {
	if !c.finished {
		_ = c.tx.Rollback(ctx)
	}
}
