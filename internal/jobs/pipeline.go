// Package jobs implements the recording ingestion pipeline: discovered
// recordings are pulled out of the conferencing provider's temporary storage
// and re-hosted on the durable video host, one step per worker tick.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/classforge/backend/internal/models"
	"github.com/classforge/backend/internal/zoom"
	"github.com/classforge/backend/pkg/storage"
)

// Step identifies one unit of pipeline work. Exactly one step runs per claim.
type Step string

const (
	StepDiscoverMetadata Step = "discover_metadata"
	StepDownload         Step = "download"
	StepUpload           Step = "upload"
)

// ErrNoRecording means the provider has no playable MP4 for the meeting.
// This is a data problem, not a transient one; retrying cannot fix it.
var ErrNoRecording = errors.New("jobs: no playable recording file")

// StepOutcome is what a completed step produced. The dispatcher persists it;
// the pipeline itself never touches the database.
type StepOutcome struct {
	RecordingFileID string // set by StepDiscoverMetadata
	DurableLink     string // set by StepUpload
}

// RecordingAPI is the provider slice the pipeline needs.
type RecordingAPI interface {
	RecordingsByInstance(ctx context.Context, instanceUUID string) (*zoom.Recordings, error)
	RecordingsByMeetingID(ctx context.Context, meetingID string) (*zoom.Recordings, error)
	DownloadRecording(ctx context.Context, downloadURL string) (io.ReadCloser, int64, error)
}

// VideoHost re-hosts a local recording file durably and returns its link.
type VideoHost interface {
	UploadRecordingFile(ctx context.Context, key, filePath string, progress storage.ProgressFunc) (string, error)
}

// Pipeline runs individual ingestion steps against the provider and the
// durable video host. It is stateless between steps; all progress lives on
// the job row and in the scratch directory.
type Pipeline struct {
	api        RecordingAPI
	host       VideoHost
	scratchDir string
	logger     *zap.Logger
}

// NewPipeline creates a pipeline. scratchDir holds in-flight downloads.
func NewPipeline(api RecordingAPI, host VideoHost, scratchDir string, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{api: api, host: host, scratchDir: scratchDir, logger: logger}
}

// StepFor maps a claimed job to the step that advances it. The second return
// is false for terminal jobs. Failed jobs resume from whatever the job row
// already proves was done: a durable link means only the upload commit is
// missing, a recording file id means metadata was found.
func StepFor(job *models.RecordingJob) (Step, bool) {
	if job.Status.Terminal() {
		return "", false
	}
	switch job.Status {
	case models.JobStatusDiscovered:
		return StepDiscoverMetadata, true
	case models.JobStatusMetadataReady:
		return StepDownload, true
	case models.JobStatusDownloading:
		return StepUpload, true
	case models.JobStatusFailed:
		if job.RecordingFileID == "" {
			return StepDiscoverMetadata, true
		}
		if job.DurableLink != "" {
			return StepUpload, true
		}
		return StepDownload, true
	}
	return "", false
}

// Run executes one step for a job.
func (p *Pipeline) Run(ctx context.Context, job *models.RecordingJob, step Step) (*StepOutcome, error) {
	switch step {
	case StepDiscoverMetadata:
		return p.discoverMetadata(ctx, job)
	case StepDownload:
		return p.download(ctx, job)
	case StepUpload:
		return p.upload(ctx, job)
	}
	return nil, fmt.Errorf("unknown step %q", step)
}

func (p *Pipeline) discoverMetadata(ctx context.Context, job *models.RecordingJob) (*StepOutcome, error) {
	recs, err := p.fetchRecordings(ctx, job)
	if err != nil {
		return nil, err
	}
	file := pickPlayableFile(recs)
	if file == nil {
		return nil, ErrNoRecording
	}
	p.logger.Info("recording metadata found",
		zap.String("job_id", job.ID.String()),
		zap.String("recording_file_id", file.ID))
	return &StepOutcome{RecordingFileID: file.ID}, nil
}

func (p *Pipeline) download(ctx context.Context, job *models.RecordingJob) (*StepOutcome, error) {
	finalPath := p.localPath(job)
	if _, err := os.Stat(finalPath); err == nil {
		// a previous attempt already landed the file; nothing to redo
		p.logger.Info("recording already on disk, skipping download",
			zap.String("job_id", job.ID.String()))
		return &StepOutcome{}, nil
	}

	// download URLs expire, so re-resolve from fresh metadata every attempt
	recs, err := p.fetchRecordings(ctx, job)
	if err != nil {
		return nil, err
	}
	var file *zoom.RecordingFile
	for i := range recs.RecordingFiles {
		if recs.RecordingFiles[i].ID == job.RecordingFileID {
			file = &recs.RecordingFiles[i]
			break
		}
	}
	if file == nil {
		return nil, fmt.Errorf("recording file %s no longer listed by provider", job.RecordingFileID)
	}

	body, size, err := p.api.DownloadRecording(ctx, file.DownloadURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if err := os.MkdirAll(p.scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	partPath := finalPath + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	written, err := io.Copy(out, body)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partPath)
		return nil, fmt.Errorf("stream recording to disk: %w", err)
	}
	// rename is the commit point; a crash mid-download leaves only a .part
	if err := os.Rename(partPath, finalPath); err != nil {
		os.Remove(partPath)
		return nil, fmt.Errorf("finalize download: %w", err)
	}
	p.logger.Info("recording downloaded",
		zap.String("job_id", job.ID.String()),
		zap.Int64("bytes", written),
		zap.Int64("expected", size))
	return &StepOutcome{}, nil
}

func (p *Pipeline) upload(ctx context.Context, job *models.RecordingJob) (*StepOutcome, error) {
	if job.DurableLink != "" {
		// earlier attempt uploaded but died before finishing; reuse the link
		p.logger.Info("durable link already recorded, skipping upload",
			zap.String("job_id", job.ID.String()))
		return &StepOutcome{DurableLink: job.DurableLink}, nil
	}

	localPath := p.localPath(job)
	if _, err := os.Stat(localPath); err != nil {
		return nil, fmt.Errorf("local recording missing before upload: %w", err)
	}

	key := storage.RecordingKey(job.SessionID.String(), job.ID.String())
	var lastLogged int64
	link, err := p.host.UploadRecordingFile(ctx, key, localPath, func(uploaded, total int64) {
		// log roughly every 50MB instead of per chunk
		if uploaded-lastLogged >= 50*1024*1024 || uploaded == total {
			lastLogged = uploaded
			p.logger.Info("upload progress",
				zap.String("job_id", job.ID.String()),
				zap.Int64("uploaded", uploaded),
				zap.Int64("total", total))
		}
	})
	if err != nil {
		return nil, err
	}
	if err := os.Remove(localPath); err != nil {
		p.logger.Warn("failed to clean up scratch file",
			zap.String("path", localPath), zap.Error(err))
	}
	return &StepOutcome{DurableLink: link}, nil
}

// fetchRecordings prefers the instance UUID; the bare meeting id only resolves
// the latest instance and is kept for sessions created before instance ids
// were captured.
func (p *Pipeline) fetchRecordings(ctx context.Context, job *models.RecordingJob) (*zoom.Recordings, error) {
	if job.MeetingInstanceID != "" {
		return p.api.RecordingsByInstance(ctx, job.MeetingInstanceID)
	}
	p.logger.Warn("job has no meeting instance id, falling back to meeting id lookup",
		zap.String("job_id", job.ID.String()),
		zap.String("meeting_id", job.MeetingID))
	return p.api.RecordingsByMeetingID(ctx, job.MeetingID)
}

func (p *Pipeline) localPath(job *models.RecordingJob) string {
	return filepath.Join(p.scratchDir, job.SessionID.String()+"-"+job.RecordingFileID+".mp4")
}

func pickPlayableFile(recs *zoom.Recordings) *zoom.RecordingFile {
	for i := range recs.RecordingFiles {
		f := &recs.RecordingFiles[i]
		if strings.EqualFold(f.FileType, "MP4") && (f.Status == "" || strings.EqualFold(f.Status, "completed")) {
			return f
		}
	}
	return nil
}
