package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the persisted state of a recording job.
type JobStatus string

// Recording job statuses. Transitions are forward-only except failed, which
// re-enters the claimable pool while retries remain; dead is terminal.
const (
	JobStatusDiscovered    JobStatus = "discovered"
	JobStatusMetadataReady JobStatus = "metadata_ready"
	JobStatusDownloading   JobStatus = "downloading"
	JobStatusCompleted     JobStatus = "completed"
	JobStatusFailed        JobStatus = "failed"
	JobStatusDead          JobStatus = "dead"
)

// Terminal reports whether no further pipeline work will happen for the status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusDead
}

// RecordingJob is one unit of recording pipeline work, 1:1 with a session.
// DurableLink doubles as the idempotency signal that the upload already
// succeeded.
type RecordingJob struct {
	ID                uuid.UUID `json:"id"`
	SessionID         uuid.UUID `json:"session_id"`
	MeetingID         string    `json:"meeting_id"`
	MeetingInstanceID string    `json:"meeting_instance_id,omitempty"`
	RecordingFileID   string    `json:"recording_file_id,omitempty"`
	Status            JobStatus `json:"status"`
	RetryCount        int       `json:"retry_count"`
	LastError         string    `json:"last_error,omitempty"`
	DurableLink       string    `json:"durable_link,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
