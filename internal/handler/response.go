package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saferoute/service-navigation/internal/application"
	"github.com/saferoute/service-navigation/internal/domain/route"
	"github.com/saferoute/service-navigation/internal/domain/session"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Kind: string(route.KindValidation)})
}

// respondError maps application and domain errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, application.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, session.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, application.ErrPlanSuperseded):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	}

	kind := route.KindOf(err)
	body := ErrorResponse{Error: route.UserMessage(err), Kind: string(kind), Reason: route.UserMessage(err)}
	switch kind {
	case route.KindValidation:
		body.Error = err.Error()
		c.JSON(http.StatusBadRequest, body)
	case route.KindNotFound:
		c.JSON(http.StatusNotFound, body)
	case route.KindNoRouteFound, route.KindNoGeometry:
		c.JSON(http.StatusUnprocessableEntity, body)
	case route.KindTransport:
		c.JSON(http.StatusBadGateway, body)
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
