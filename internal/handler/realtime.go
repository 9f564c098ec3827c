package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"guardian-gateway/internal/realtime"
)

type RealtimeHandler struct {
	Transport *realtime.Transport
}

// Reconnect restarts the push channel after the retry budget ran out.
func (h *RealtimeHandler) Reconnect(c *gin.Context) {
	if err := h.Transport.Reconnect(); err != nil {
		if errors.Is(err, realtime.ErrTransportClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Realtime channel is shut down"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"state": h.Transport.State()})
}
