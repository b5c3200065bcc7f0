package attendance

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classforge/backend/internal/models"
)

// ErrSessionNotFound is returned when a sheet is requested for an unknown session.
var ErrSessionNotFound = errors.New("attendance: session not found")

// SessionSource is the slice of the sessions domain the service needs.
type SessionSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	IncrementAttendedCounts(ctx context.Context, batchID uuid.UUID, emails []string) error
}

// Store persists computed sheets.
type Store interface {
	ReplaceForSession(ctx context.Context, sessionID uuid.UUID, records []models.AttendanceRecord) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.AttendanceRecord, error)
	ExistsForSession(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// Service is the contract exposed to the surrounding CRUD layer: (re)compute
// attendance for a session, or read the persisted sheet.
type Service struct {
	sessions   SessionSource
	store      Store
	aggregator *Aggregator
	logger     *zap.Logger
}

// NewService creates the attendance service.
func NewService(sessions SessionSource, store Store, aggregator *Aggregator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{sessions: sessions, store: store, aggregator: aggregator, logger: logger}
}

// Recompute aggregates provider telemetry for the session, derives verdicts
// and replaces the persisted sheet. Either the whole sheet is written or
// nothing changes.
func (s *Service) Recompute(ctx context.Context, sessionID uuid.UUID) ([]models.AttendanceRecord, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	participants, err := s.aggregator.Aggregate(ctx, session.MeetingID)
	if err != nil {
		return nil, err
	}

	records, err := Compute(session, participants)
	if err != nil {
		return nil, err
	}

	firstComputation, err := s.store.ExistsForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	firstComputation = !firstComputation

	if err := s.store.ReplaceForSession(ctx, sessionID, records); err != nil {
		return nil, err
	}

	// streak counters only move on the first sheet; recomputes replace the
	// records but must not double-count the same session
	if firstComputation {
		var present []string
		for _, rec := range records {
			if rec.Verdict == models.VerdictPresent {
				present = append(present, rec.Email)
			}
		}
		if err := s.sessions.IncrementAttendedCounts(ctx, session.BatchID, present); err != nil {
			s.logger.Error("increment attended counts failed",
				zap.Error(err), zap.String("session_id", sessionID.String()))
		}
	}

	s.logger.Info("attendance computed",
		zap.String("session_id", sessionID.String()),
		zap.Int("records", len(records)))
	return records, nil
}

// Get returns the persisted sheet for a session.
func (s *Service) Get(ctx context.Context, sessionID uuid.UUID) ([]models.AttendanceRecord, error) {
	return s.store.ListBySession(ctx, sessionID)
}

// EnsureComputed computes the sheet only if none exists yet. Used by the
// scheduler so repeated finalization passes stay idempotent.
func (s *Service) EnsureComputed(ctx context.Context, sessionID uuid.UUID) error {
	exists, err := s.store.ExistsForSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = s.Recompute(ctx, sessionID)
	return err
}
