package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/saferoute/service-navigation/internal/application"
	"github.com/saferoute/service-navigation/internal/auth"
	"github.com/saferoute/service-navigation/internal/domain/safety"
	"github.com/saferoute/service-navigation/internal/middleware"
)

// ImportObservationsRequest is the body of a bulk import.
type ImportObservationsRequest struct {
	Observations []safety.Observation `json:"observations" binding:"required"`
}

// AdminSafetyHandler handles admin HTTP requests for safety data management.
type AdminSafetyHandler struct {
	service *application.SafetyService
}

// NewAdminSafetyHandler creates a new AdminSafetyHandler.
func NewAdminSafetyHandler(service *application.SafetyService) *AdminSafetyHandler {
	return &AdminSafetyHandler{service: service}
}

// RegisterRoutes registers admin safety routes.
func (h *AdminSafetyHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.POST("/safety-observations", h.ImportObservations)
		admin.GET("/safety-observations/stats", h.ObservationStats)
	}
}

// ImportObservations handles POST /api/v1/admin/safety-observations.
func (h *AdminSafetyHandler) ImportObservations(c *gin.Context) {
	var req ImportObservationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	n, err := h.service.ImportObservations(c.Request.Context(), req.Observations)
	if err != nil {
		respondError(c, err)
		return
	}
	created(c, gin.H{"imported": n})
}

// ObservationStats handles GET /api/v1/admin/safety-observations/stats.
func (h *AdminSafetyHandler) ObservationStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, stats)
}
