// Package alerts publishes operational alerts to a Redis list so stuck
// pipeline work is observable instead of silently inert.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// ListDeadJobs is the Redis list key for recording jobs that exhausted
	// their retry budget.
	ListDeadJobs = "alerts:dead_jobs"
)

// Kind identifies the alert type.
type Kind string

const (
	KindJobDead Kind = "recording_job_dead"
)

// Alert is a generic alert envelope.
type Alert struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// DeadJobPayload describes a recording job that will never be retried again.
type DeadJobPayload struct {
	JobID      uuid.UUID `json:"job_id"`
	SessionID  uuid.UUID `json:"session_id"`
	RetryCount int       `json:"retry_count"`
	LastError  string    `json:"last_error"`
}

// Publisher pushes alerts onto Redis lists.
type Publisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPublisher creates a Redis-backed alert publisher.
func NewPublisher(client *redis.Client, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, logger: logger}
}

// PublishDeadJob records that a job moved to its terminal dead status.
func (p *Publisher) PublishDeadJob(ctx context.Context, payload DeadJobPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	alert := Alert{
		ID:        uuid.New().String(),
		Kind:      KindJobDead,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if err := p.client.RPush(ctx, ListDeadJobs, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	p.logger.Warn("dead job alert published",
		zap.String("job_id", payload.JobID.String()),
		zap.Int("retry_count", payload.RetryCount))
	return nil
}

// PendingDeadJobs returns the number of unconsumed dead-job alerts.
func (p *Publisher) PendingDeadJobs(ctx context.Context) (int64, error) {
	return p.client.LLen(ctx, ListDeadJobs).Result()
}
