package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"guardian-gateway/internal/backend"
	"guardian-gateway/internal/model"
	"guardian-gateway/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NotificationHandler serves notification reads from the query cache and
// falls back to the backend when an entry is missing or stale.
type NotificationHandler struct {
	Backend *backend.Client
	Cache   *store.Store
	Now     func() time.Time
}

func (h *NotificationHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func parseNotificationQuery(c *gin.Context) (model.NotificationQuery, bool) {
	q := model.NotificationQuery{Page: 0, Size: defaultPageSize}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			return q, false
		}
		q.Page = page
	}
	if raw := c.Query("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 || size > maxPageSize {
			return q, false
		}
		q.Size = size
	}
	if raw := c.Query("isRead"); raw != "" {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			return q, false
		}
		q.IsRead = &read
	}
	return q, true
}

func (h *NotificationHandler) List(c *gin.Context) {
	q, ok := parseNotificationQuery(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query"})
		return
	}

	key := q.Key()
	if page, fresh := h.Cache.NotificationPage(key); fresh {
		c.JSON(http.StatusOK, page)
		return
	}
	page, err := h.Backend.Notifications(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Cache.PutNotificationPage(key, page)
	c.JSON(http.StatusOK, page)
}

func (h *NotificationHandler) Recent(c *gin.Context) {
	if items, loaded := h.Cache.Recent(); loaded {
		c.JSON(http.StatusOK, gin.H{"content": items})
		return
	}
	page, err := h.Backend.Notifications(c.Request.Context(), model.NotificationQuery{Page: 0, Size: store.RecentLimit})
	if err != nil {
		respondError(c, err)
		return
	}
	h.Cache.SetRecent(page.Content)
	items, _ := h.Cache.Recent()
	c.JSON(http.StatusOK, gin.H{"content": items})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	if n, loaded := h.Cache.UnreadCount(); loaded {
		c.JSON(http.StatusOK, gin.H{"count": n})
		return
	}
	n, err := h.Backend.UnreadCount(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	h.Cache.SetUnreadCount(n)
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
		return
	}
	if err := h.Backend.MarkRead(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	h.Cache.MarkRead(id, h.now())
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.Backend.MarkAllRead(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	h.Cache.MarkAllRead(h.now())
	c.JSON(http.StatusOK, gin.H{"success": true})
}
