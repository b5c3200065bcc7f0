package jobs

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classforge/backend/internal/models"
	"github.com/classforge/backend/pkg/response"
)

// SessionGetter loads sessions for trigger validation.
type SessionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// Handler exposes recording job inspection and manual triggering.
type Handler struct {
	repo     *Repository
	sessions SessionGetter
	logger   *zap.Logger
}

// NewHandler creates a jobs handler.
func NewHandler(repo *Repository, sessions SessionGetter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, sessions: sessions, logger: logger}
}

// Get handles GET /sessions/:id/recording-job.
func (h *Handler) Get(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	job, err := h.repo.GetBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("get recording job failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to load recording job")
		return
	}
	if job == nil {
		response.NotFound(c, "no recording job for session")
		return
	}
	response.OK(c, job)
}

// Trigger handles POST /sessions/:id/recording-job. Creating a job for a
// session that already has one returns the existing job unchanged.
func (h *Handler) Trigger(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	session, err := h.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("load session failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to load session")
		return
	}
	if session == nil {
		response.NotFound(c, "session not found")
		return
	}
	if session.MeetingID == "" {
		response.UnprocessableEntity(c, "session has no conferencing meeting to ingest")
		return
	}

	job, err := h.repo.CreateForSession(c.Request.Context(), session)
	if err != nil {
		h.logger.Error("create recording job failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to create recording job")
		return
	}
	response.Accepted(c, job)
}
