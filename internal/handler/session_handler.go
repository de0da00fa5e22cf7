package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/saferoute/service-navigation/internal/application"
)

// PlanRouteRequest is the body of a plan request.
type PlanRouteRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SessionHandler handles HTTP requests for navigation sessions.
type SessionHandler struct {
	manager *application.SessionManager
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(manager *application.SessionManager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

// RegisterRoutes registers all session routes on the given router group.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	sessions := r.Group("/api/v1/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
		sessions.POST("/:id/plan", h.PlanRoute)
		sessions.POST("/:id/navigate", h.StartNavigation)
		sessions.POST("/:id/cancel", h.CancelNavigation)
		sessions.DELETE("/:id", h.DeleteSession)
	}
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid session ID")
		return uuid.Nil, false
	}
	return id, true
}

// CreateSession handles POST /api/v1/sessions.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	created(c, h.manager.CreateSession())
}

// ListSessions handles GET /api/v1/sessions with an optional ?status= filter.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	result, err := h.manager.ListSessions(c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, gin.H{"sessions": result, "count": len(result)})
}

// GetSession handles GET /api/v1/sessions/:id.
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	result, err := h.manager.GetSession(id)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, result)
}

// PlanRoute handles POST /api/v1/sessions/:id/plan.
func (h *SessionHandler) PlanRoute(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	var req PlanRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.manager.PlanRoute(c.Request.Context(), id, req.Start, req.End)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, result)
}

// StartNavigation handles POST /api/v1/sessions/:id/navigate.
func (h *SessionHandler) StartNavigation(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	result, err := h.manager.StartNavigation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, result)
}

// CancelNavigation handles POST /api/v1/sessions/:id/cancel.
func (h *SessionHandler) CancelNavigation(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	result, err := h.manager.CancelNavigation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, result)
}

// DeleteSession handles DELETE /api/v1/sessions/:id.
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	if err := h.manager.DeleteSession(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
