package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"guardian-gateway/internal/backend"
	"guardian-gateway/internal/model"
)

type EmergencyHandler struct {
	Backend *backend.Client
}

// List forwards the UI's filters (status, elderId, page, size) untouched.
func (h *EmergencyHandler) List(c *gin.Context) {
	raw, err := h.Backend.Emergencies(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		respondError(c, err)
		return
	}
	writeRaw(c, http.StatusOK, raw)
}

func (h *EmergencyHandler) Get(c *gin.Context) {
	raw, err := h.Backend.Emergency(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	writeRaw(c, http.StatusOK, raw)
}

func (h *EmergencyHandler) Resolve(c *gin.Context) {
	var body model.ResolveEmergencyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	body.Resolution = strings.TrimSpace(body.Resolution)
	if body.Resolution == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Resolution is required"})
		return
	}

	raw, err := h.Backend.ResolveEmergency(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		respondError(c, err)
		return
	}
	writeRaw(c, http.StatusOK, raw)
}
