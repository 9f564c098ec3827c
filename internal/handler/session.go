package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"guardian-gateway/internal/realtime"
	"guardian-gateway/internal/session"
)

type SessionHandler struct {
	Session   *session.Store
	Transport *realtime.Transport
}

// Redirect answers where "/" should lead for the current session.
func (h *SessionHandler) Redirect(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"redirect": h.Session.RootRedirect()})
}

func (h *SessionHandler) Get(c *gin.Context) {
	state := realtime.StateDisconnected
	if h.Transport != nil {
		state = h.Transport.State()
	}
	c.JSON(http.StatusOK, gin.H{
		"user":     h.Session.Identity(),
		"redirect": h.Session.RootRedirect(),
		"realtime": state,
	})
}
