package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"guardian-gateway/internal/backend"
	"guardian-gateway/internal/model"
)

type RobotHandler struct {
	Backend *backend.Client
}

func (h *RobotHandler) Status(c *gin.Context) {
	raw, err := h.Backend.RobotStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	writeRaw(c, http.StatusOK, raw)
}

func (h *RobotHandler) Command(c *gin.Context) {
	var body model.RobotCommand
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	body.Command = strings.TrimSpace(body.Command)
	if body.Command == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Command is required"})
		return
	}

	raw, err := h.Backend.SendCommand(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		respondError(c, err)
		return
	}
	writeRaw(c, http.StatusOK, raw)
}

func (h *RobotHandler) LCD(c *gin.Context) {
	raw, err := h.Backend.RobotLCD(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	writeRaw(c, http.StatusOK, raw)
}

func (h *RobotHandler) Emergency(c *gin.Context) {
	raw, err := h.Backend.TriggerEmergency(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	writeRaw(c, http.StatusOK, raw)
}
