package attendance

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classforge/backend/internal/tokens"
	"github.com/classforge/backend/pkg/response"
)

// Handler handles attendance HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates an attendance handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Recompute handles POST /sessions/:id/attendance/recompute.
func (h *Handler) Recompute(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}

	records, err := h.service.Recompute(c.Request.Context(), sessionID)
	if err != nil {
		var integrity *IntegrityError
		switch {
		case errors.Is(err, ErrSessionNotFound):
			response.NotFound(c, "session not found")
		case errors.As(err, &integrity):
			response.UnprocessableEntity(c, integrity.Error())
		case errors.Is(err, tokens.ErrNoCredentials):
			response.Unauthorized(c, "provider credentials missing or expired")
		default:
			h.logger.Error("recompute attendance failed", zap.Error(err), zap.String("session_id", sessionID.String()))
			response.Internal(c, "failed to compute attendance")
		}
		return
	}
	response.OK(c, records)
}

// Get handles GET /sessions/:id/attendance.
func (h *Handler) Get(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	records, err := h.service.Get(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("get attendance failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to load attendance")
		return
	}
	if len(records) == 0 {
		response.NotFound(c, "no attendance computed for session")
		return
	}
	response.OK(c, records)
}
