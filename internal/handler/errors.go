package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"guardian-gateway/internal/backend"
	"guardian-gateway/internal/session"
)

// respondError maps a service error onto an HTTP status. Backend API errors
// keep their status so the UI can tell 401 from 404.
func respondError(c *gin.Context, err error) {
	var apiErr *backend.APIError
	var malformed *backend.MalformedResponseError
	switch {
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		body := gin.H{"error": apiErr.Message}
		if apiErr.Code != "" {
			body["code"] = apiErr.Code
		}
		c.JSON(status, body)
	case errors.As(err, &malformed):
		c.JSON(http.StatusBadGateway, gin.H{"error": malformed.Error()})
	case errors.Is(err, backend.ErrNoRobot):
		c.JSON(http.StatusNotFound, gin.H{"error": "No robot assigned"})
	case errors.Is(err, session.ErrEmptyAccessToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Backend timeout"})
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Backend unavailable"})
	}
}

// writeRaw answers with a backend document as-is.
func writeRaw(c *gin.Context, status int, raw []byte) {
	if len(raw) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.Data(status, "application/json; charset=utf-8", raw)
}
