package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"guardian-gateway/internal/model"
)

func (c *Client) Emergencies(ctx context.Context, query url.Values) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, request{method: http.MethodGet, path: "/emergencies", query: query}, &out)
	return out, err
}

func (c *Client) Emergency(ctx context.Context, id string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, request{method: http.MethodGet, path: "/emergencies/" + pathID(id)}, &out)
	return out, err
}

func (c *Client) ResolveEmergency(ctx context.Context, id string, req model.ResolveEmergencyRequest) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, request{method: http.MethodPatch, path: "/emergencies/" + pathID(id) + "/resolve", body: req}, &out)
	return out, err
}
