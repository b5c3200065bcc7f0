// Package scheduler runs the adaptive finalization loop: completed sessions
// get their attendance sheet computed and their recording link resolved, and
// the loop re-arms itself with an interval sized to the remaining backlog.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classforge/backend/internal/calendar"
	"github.com/classforge/backend/internal/models"
	"github.com/classforge/backend/internal/tokens"
)

// DefaultInterval is used for empty-load edge cases and heavy backlogs; a
// backlog past the top bucket is drained at this fast cadence.
const DefaultInterval = 2 * time.Minute

// staleAfter is how long after a session ends we keep looking for a recording
// before giving up and marking the link as never materializing.
const staleAfter = 72 * time.Hour

// IntervalForLoad maps the number of unfinalized sessions to the next cycle
// interval. Light load polls lazily, heavy load polls aggressively.
func IntervalForLoad(n int) time.Duration {
	switch {
	case n < 0:
		return DefaultInterval
	case n <= 1:
		return 100 * time.Minute
	case n <= 3:
		return 70 * time.Minute
	case n <= 6:
		return 40 * time.Minute
	case n <= 10:
		return 30 * time.Minute
	case n <= 13:
		return 20 * time.Minute
	case n <= 15:
		return 10 * time.Minute
	default:
		return DefaultInterval
	}
}

// SessionStore is the sessions slice the scheduler drives.
type SessionStore interface {
	ListUnfinalized(ctx context.Context) ([]models.Session, error)
	ReclassifyStatuses(ctx context.Context, now time.Time) error
	UpdateRecordingLink(ctx context.Context, id uuid.UUID, link string) error
}

// AttendanceComputer computes a session's sheet if none exists yet.
type AttendanceComputer interface {
	EnsureComputed(ctx context.Context, sessionID uuid.UUID) error
}

// JobCreator enqueues recording ingestion for conference sessions.
type JobCreator interface {
	CreateForSession(ctx context.Context, s *models.Session) (*models.RecordingJob, error)
}

// CalendarAPI looks up calendar events for the attachment fallback.
type CalendarAPI interface {
	GetEvent(ctx context.Context, accessToken, eventID string) (*calendar.Event, error)
}

// TokenStore loads a user's calendar credentials.
type TokenStore interface {
	GetByEmail(ctx context.Context, email string) (*tokens.Credentials, error)
}

// Scheduler owns the re-arming finalization timer. At most one cycle runs at
// a time; a cycle triggered while another is in flight is skipped, not queued.
type Scheduler struct {
	sessions   SessionStore
	attendance AttendanceComputer
	jobs       JobCreator
	calendar   CalendarAPI
	tokens     TokenStore

	initialDelay time.Duration
	pacingDelay  time.Duration
	logger       *zap.Logger

	mu       sync.Mutex
	inCycle  bool
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler. initialDelay is the delay before the first cycle;
// every later delay is adaptive. pacingDelay spaces sessions within a cycle so
// provider rate limits are not hammered.
func New(sessions SessionStore, attendance AttendanceComputer, jobs JobCreator,
	cal CalendarAPI, tokenStore TokenStore, initialDelay, pacingDelay time.Duration,
	logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		sessions:     sessions,
		attendance:   attendance,
		jobs:         jobs,
		calendar:     cal,
		tokens:       tokenStore,
		initialDelay: initialDelay,
		pacingDelay:  pacingDelay,
		interval:     DefaultInterval,
		logger:       logger,
	}
}

// Start launches the timer loop. Calling Start twice without Stop is a bug.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx)
	s.logger.Info("finalization scheduler started", zap.Duration("initial_delay", s.initialDelay))
}

// Stop cancels the loop and waits for any in-flight cycle to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("finalization scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	timer := time.NewTimer(s.initialDelay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		next := s.RunCycle(ctx)
		timer.Reset(next)
	}
}

// Interval returns the currently armed cycle interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// RunCycle performs one finalization pass and returns the interval until the
// next one. Safe to call manually; overlapping calls are skipped.
func (s *Scheduler) RunCycle(ctx context.Context) time.Duration {
	if !s.beginCycle() {
		s.logger.Warn("finalization cycle already in flight, skipping")
		return s.Interval()
	}
	defer s.endCycle()

	now := time.Now()
	if err := s.sessions.ReclassifyStatuses(ctx, now); err != nil {
		s.logger.Error("reclassify session statuses failed", zap.Error(err))
	}

	list, err := s.sessions.ListUnfinalized(ctx)
	if err != nil {
		s.logger.Error("list unfinalized sessions failed", zap.Error(err))
		return s.setInterval(DefaultInterval)
	}

	for i := range list {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && s.pacingDelay > 0 {
			select {
			case <-ctx.Done():
				return s.Interval()
			case <-time.After(s.pacingDelay):
			}
		}
		s.finalize(ctx, &list[i], now)
	}

	next := IntervalForLoad(len(list))
	s.logger.Info("finalization cycle done",
		zap.Int("sessions", len(list)),
		zap.Duration("next_interval", next))
	return s.setInterval(next)
}

// finalize processes one session. Errors are absorbed and logged so a single
// bad session cannot stall the whole backlog.
func (s *Scheduler) finalize(ctx context.Context, session *models.Session, now time.Time) {
	if err := s.attendance.EnsureComputed(ctx, session.ID); err != nil {
		s.logger.Warn("attendance finalization failed",
			zap.String("session_id", session.ID.String()), zap.Error(err))
	}

	if now.Sub(session.EndsAt) > staleAfter {
		if err := s.sessions.UpdateRecordingLink(ctx, session.ID, models.RecordingLinkNotFound); err != nil {
			s.logger.Error("mark recording not found failed",
				zap.String("session_id", session.ID.String()), zap.Error(err))
			return
		}
		s.logger.Info("recording given up on",
			zap.String("session_id", session.ID.String()),
			zap.Time("ended_at", session.EndsAt))
		return
	}

	if session.IsConference {
		if _, err := s.jobs.CreateForSession(ctx, session); err != nil {
			s.logger.Error("enqueue recording job failed",
				zap.String("session_id", session.ID.String()), zap.Error(err))
		}
		return
	}

	s.resolveCalendarAttachment(ctx, session)
}

// resolveCalendarAttachment handles calendar-backed sessions, whose recording
// arrives as an event attachment under the creator's own calendar account.
func (s *Scheduler) resolveCalendarAttachment(ctx context.Context, session *models.Session) {
	creds, err := s.tokens.GetByEmail(ctx, session.CreatorEmail)
	if err != nil {
		s.logger.Warn("no calendar credentials for session creator",
			zap.String("session_id", session.ID.String()),
			zap.String("creator", session.CreatorEmail),
			zap.Error(err))
		return
	}
	ev, err := s.calendar.GetEvent(ctx, creds.AccessToken, session.MeetingID)
	if err != nil {
		s.logger.Warn("calendar event lookup failed",
			zap.String("session_id", session.ID.String()), zap.Error(err))
		return
	}
	att := calendar.RecordingAttachment(ev)
	if att == nil {
		// recording not attached yet; a later cycle picks it up
		return
	}
	if err := s.sessions.UpdateRecordingLink(ctx, session.ID, att.FileURL); err != nil {
		s.logger.Error("store attachment recording link failed",
			zap.String("session_id", session.ID.String()), zap.Error(err))
		return
	}
	s.logger.Info("recording link resolved from calendar attachment",
		zap.String("session_id", session.ID.String()))
}

func (s *Scheduler) beginCycle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inCycle {
		return false
	}
	s.inCycle = true
	return true
}

func (s *Scheduler) endCycle() {
	s.mu.Lock()
	s.inCycle = false
	s.mu.Unlock()
}

func (s *Scheduler) setInterval(d time.Duration) time.Duration {
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
	return d
}
