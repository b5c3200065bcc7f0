package sessions

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classforge/backend/internal/models"
	"github.com/classforge/backend/pkg/response"
)

// Store is the repository slice the HTTP layer needs.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]models.Session, error)
}

// Handler handles session HTTP endpoints.
type Handler struct {
	repo   Store
	logger *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(repo Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

type createSessionRequest struct {
	Title             string               `json:"title" binding:"required"`
	MeetingID         string               `json:"meeting_id" binding:"required"`
	MeetingInstanceID string               `json:"meeting_instance_id"`
	BatchID           uuid.UUID            `json:"batch_id" binding:"required"`
	BootcampID        uuid.UUID            `json:"bootcamp_id" binding:"required"`
	CreatorEmail      string               `json:"creator_email" binding:"required,email"`
	StartsAt          time.Time            `json:"starts_at" binding:"required"`
	EndsAt            time.Time            `json:"ends_at" binding:"required"`
	InvitedRoster     []models.RosterEntry `json:"invited_roster"`
	IsConference      bool                 `json:"is_conference"`
}

// Create handles POST /sessions. The invited roster is snapshotted here;
// later enrollment changes do not rewrite past sheets.
func (h *Handler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		response.BadRequest(c, "ends_at must be after starts_at")
		return
	}

	s := &models.Session{
		Title:             req.Title,
		MeetingID:         req.MeetingID,
		MeetingInstanceID: req.MeetingInstanceID,
		BatchID:           req.BatchID,
		BootcampID:        req.BootcampID,
		CreatorEmail:      req.CreatorEmail,
		StartsAt:          req.StartsAt,
		EndsAt:            req.EndsAt,
		Status:            models.SessionStatusUpcoming,
		InvitedRoster:     req.InvitedRoster,
		IsConference:      req.IsConference,
	}
	if err := h.repo.Create(c.Request.Context(), s); err != nil {
		h.logger.Error("create session failed", zap.Error(err))
		response.Internal(c, "failed to create session")
		return
	}
	response.Created(c, s)
}

// ListByBatch handles GET /sessions?batch_id=...&limit=...&offset=...
func (h *Handler) ListByBatch(c *gin.Context) {
	batchID, err := uuid.Parse(c.Query("batch_id"))
	if err != nil {
		response.BadRequest(c, "invalid batch_id")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	list, err := h.repo.ListByBatch(c.Request.Context(), batchID, limit, offset)
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err), zap.String("batch_id", batchID.String()))
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /sessions/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	s, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get session failed", zap.Error(err), zap.String("session_id", id.String()))
		response.Internal(c, "failed to load session")
		return
	}
	if s == nil {
		response.NotFound(c, "session not found")
		return
	}
	response.OK(c, s)
}
