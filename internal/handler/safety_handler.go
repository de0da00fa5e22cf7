package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saferoute/service-navigation/internal/adapter/ranker"
	"github.com/saferoute/service-navigation/internal/application"
)

// SafetyHandler serves safest-route queries.
type SafetyHandler struct {
	service *application.SafetyService
}

// NewSafetyHandler creates a new SafetyHandler.
func NewSafetyHandler(service *application.SafetyService) *SafetyHandler {
	return &SafetyHandler{service: service}
}

// RegisterRoutes registers the ranking route.
func (h *SafetyHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST(ranker.SafestRoutePath, h.FindSafestRoute)
}

// FindSafestRoute handles POST /api/v1/routes/safest. An unusable query is
// answered with an error payload and 422.
func (h *SafetyHandler) FindSafestRoute(c *gin.Context) {
	var req ranker.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ranker.Response{Error: "start and end are required"})
		return
	}

	result, err := h.service.FindSafestRoute(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	if result.Error != "" {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	success(c, result)
}
