package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classforge/backend/internal/models"
	"github.com/classforge/backend/pkg/alerts"
)

// JobSource hands out exclusively claimed jobs.
type JobSource interface {
	ClaimNext(ctx context.Context) (Claim, error)
}

// Stepper runs one pipeline step.
type Stepper interface {
	Run(ctx context.Context, job *models.RecordingJob, step Step) (*StepOutcome, error)
}

// SessionLinker records the durable recording link on the owning session.
type SessionLinker interface {
	UpdateRecordingLink(ctx context.Context, sessionID uuid.UUID, link string) error
}

// AlertPublisher surfaces jobs that ran out of retries.
type AlertPublisher interface {
	PublishDeadJob(ctx context.Context, payload alerts.DeadJobPayload) error
}

// Dispatcher is the worker loop: every tick it claims at most one job, runs
// exactly one step and persists the transition. Throughput scales by running
// more workers, not by doing more per tick.
type Dispatcher struct {
	source       JobSource
	pipeline     Stepper
	sessions     SessionLinker
	alerts       AlertPublisher
	tick         time.Duration
	retryCeiling int
	logger       *zap.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(source JobSource, pipeline Stepper, sessions SessionLinker, alertPub AlertPublisher,
	tick time.Duration, retryCeiling int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		source:       source,
		pipeline:     pipeline,
		sessions:     sessions,
		alerts:       alertPub,
		tick:         tick,
		retryCeiling: retryCeiling,
		logger:       logger,
	}
}

// Run ticks until the context is cancelled. A tick that errors is logged and
// absorbed; the next tick starts fresh.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("recording dispatcher started", zap.Duration("tick", d.tick))
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("recording dispatcher stopped")
			return
		case <-ticker.C:
			if err := d.Tick(ctx); err != nil {
				d.logger.Error("dispatcher tick failed", zap.Error(err))
			}
		}
	}
}

// Tick claims one job and advances it by one step. Returns nil when no job is
// claimable.
func (d *Dispatcher) Tick(ctx context.Context) error {
	claim, err := d.source.ClaimNext(ctx)
	if err != nil {
		return err
	}
	if claim == nil {
		return nil
	}
	defer claim.Close(ctx)

	job := claim.Job()
	step, ok := StepFor(job)
	if !ok {
		// terminal row matched the claim filter somehow; just release it
		return claim.Finish(ctx)
	}

	outcome, stepErr := d.pipeline.Run(ctx, job, step)
	if stepErr != nil {
		if err := d.recordFailure(ctx, claim, stepErr); err != nil {
			return err
		}
		return claim.Finish(ctx)
	}

	if err := d.recordSuccess(ctx, claim, step, outcome); err != nil {
		return err
	}
	return claim.Finish(ctx)
}

func (d *Dispatcher) recordSuccess(ctx context.Context, claim Claim, step Step, outcome *StepOutcome) error {
	job := claim.Job()
	switch step {
	case StepDiscoverMetadata:
		d.logger.Info("job advanced", zap.String("job_id", job.ID.String()),
			zap.String("step", string(step)))
		return claim.SetMetadataReady(ctx, outcome.RecordingFileID)
	case StepDownload:
		d.logger.Info("job advanced", zap.String("job_id", job.ID.String()),
			zap.String("step", string(step)))
		return claim.SetDownloading(ctx)
	case StepUpload:
		if err := claim.SetCompleted(ctx, outcome.DurableLink); err != nil {
			return err
		}
		if err := d.sessions.UpdateRecordingLink(ctx, job.SessionID, outcome.DurableLink); err != nil {
			return err
		}
		d.logger.Info("recording ingested",
			zap.String("job_id", job.ID.String()),
			zap.String("session_id", job.SessionID.String()))
		return nil
	}
	return nil
}

// recordFailure decides between another retry and the terminal dead status.
// Unfixable data problems skip the retry budget entirely.
func (d *Dispatcher) recordFailure(ctx context.Context, claim Claim, stepErr error) error {
	job := claim.Job()
	permanent := errors.Is(stepErr, ErrNoRecording)
	exhausted := job.RetryCount+1 >= d.retryCeiling

	if !permanent && !exhausted {
		d.logger.Warn("job step failed, will retry",
			zap.String("job_id", job.ID.String()),
			zap.Int("retry_count", job.RetryCount+1),
			zap.Error(stepErr))
		return claim.SetFailed(ctx, stepErr.Error())
	}

	if err := claim.SetDead(ctx, stepErr.Error()); err != nil {
		return err
	}
	d.logger.Error("job moved to dead",
		zap.String("job_id", job.ID.String()),
		zap.String("session_id", job.SessionID.String()),
		zap.Bool("permanent_error", permanent),
		zap.Error(stepErr))
	if d.alerts != nil {
		if err := d.alerts.PublishDeadJob(ctx, alerts.DeadJobPayload{
			JobID:      job.ID,
			SessionID:  job.SessionID,
			RetryCount: job.RetryCount,
			LastError:  stepErr.Error(),
		}); err != nil {
			d.logger.Error("publish dead job alert failed", zap.Error(err))
		}
	}
	return nil
}
