package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"guardian-gateway/internal/backend"
)

type ElderHandler struct {
	Backend *backend.Client
}

func (h *ElderHandler) Get(c *gin.Context) {
	raw, err := h.Backend.Elder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	writeRaw(c, http.StatusOK, raw)
}

// Robot resolves the robot assigned to an elder.
func (h *ElderHandler) Robot(c *gin.Context) {
	id, err := h.Backend.ElderRobotID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"robotId": id})
}
