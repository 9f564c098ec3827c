package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"guardian-gateway/internal/backend"
	"guardian-gateway/internal/store"
)

const maxSettingsBody = 64 << 10

type SettingsHandler struct {
	Backend *backend.Client
	Cache   *store.Store
}

func (h *SettingsHandler) Get(c *gin.Context) {
	if raw, ok := h.Cache.Settings(); ok {
		writeRaw(c, http.StatusOK, raw)
		return
	}
	raw, err := h.Backend.Settings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	h.Cache.SetSettings(raw)
	writeRaw(c, http.StatusOK, raw)
}

// Update forwards a partial settings object and caches the backend's result.
func (h *SettingsHandler) Update(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSettingsBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(body, &patch); err != nil || patch == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Settings must be a JSON object"})
		return
	}

	raw, err := h.Backend.UpdateSettings(c.Request.Context(), json.RawMessage(bytes.TrimSpace(body)))
	if err != nil {
		respondError(c, err)
		return
	}
	if len(raw) > 0 {
		h.Cache.SetSettings(raw)
	}
	writeRaw(c, http.StatusOK, raw)
}
