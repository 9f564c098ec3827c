package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"guardian-gateway/internal/model"
)

func (c *Client) Notifications(ctx context.Context, q model.NotificationQuery) (model.NotificationPage, error) {
	var page model.NotificationPage
	err := c.do(ctx, request{method: http.MethodGet, path: "/notifications", query: q.Values()}, &page)
	if err == nil && page.Content == nil {
		page.Content = []model.Notification{}
	}
	return page, err
}

// UnreadCount accepts either a bare number or {"count": n}.
func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/notifications/unread-count"}, &raw); err != nil {
		return 0, err
	}
	return decodeCount(raw)
}

func decodeCount(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var wrapped struct {
		Count       *int64 `json:"count"`
		UnreadCount *int64 `json:"unreadCount"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return 0, &MalformedResponseError{Op: "GET /notifications/unread-count", Err: err}
	}
	switch {
	case wrapped.Count != nil:
		return *wrapped.Count, nil
	case wrapped.UnreadCount != nil:
		return *wrapped.UnreadCount, nil
	}
	return 0, &MalformedResponseError{Op: "GET /notifications/unread-count", Field: "count"}
}

func (c *Client) MarkRead(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodPatch, path: "/notifications/" + strconv.FormatInt(id, 10) + "/read"}, nil)
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodPatch, path: "/notifications/read-all"}, nil)
}

func (c *Client) Settings(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, request{method: http.MethodGet, path: "/users/me/settings"}, &out)
	return out, err
}

func (c *Client) UpdateSettings(ctx context.Context, patch json.RawMessage) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, request{method: http.MethodPatch, path: "/users/me/settings", body: patch}, &out)
	return out, err
}
