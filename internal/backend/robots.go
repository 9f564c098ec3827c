package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"guardian-gateway/internal/model"
)

func (c *Client) RobotStatus(ctx context.Context, robotID string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, request{method: http.MethodGet, path: "/robots/" + pathID(robotID) + "/status"}, &out)
	return out, err
}

// SendCommand waits on the command limiter before dispatching.
func (c *Client) SendCommand(ctx context.Context, robotID string, cmd model.RobotCommand) (json.RawMessage, error) {
	if c.commands != nil {
		if err := c.commands.Wait(ctx); err != nil {
			return nil, fmt.Errorf("backend: command throttle: %w", err)
		}
	}
	var out json.RawMessage
	err := c.do(ctx, request{method: http.MethodPost, path: "/robots/" + pathID(robotID) + "/commands", body: cmd}, &out)
	return out, err
}

func (c *Client) RobotLCD(ctx context.Context, robotID string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, request{method: http.MethodGet, path: "/robots/" + pathID(robotID) + "/lcd"}, &out)
	return out, err
}

func (c *Client) Elder(ctx context.Context, elderID string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, request{method: http.MethodGet, path: "/elders/" + pathID(elderID)}, &out)
	return out, err
}

// ElderRobotID resolves the robot assigned to an elder.
func (c *Client) ElderRobotID(ctx context.Context, elderID string) (int64, error) {
	raw, err := c.Elder(ctx, elderID)
	if err != nil {
		return 0, err
	}
	var elder model.Elder
	if err := json.Unmarshal(raw, &elder); err != nil {
		return 0, &MalformedResponseError{Op: "GET /elders/{id}", Err: err}
	}
	if !elder.RobotID.Set {
		return 0, ErrNoRobot
	}
	return elder.RobotID.Value, nil
}

func (c *Client) TriggerEmergency(ctx context.Context, robotID string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, request{method: http.MethodPost, path: "/robots/" + pathID(robotID) + "/emergency"}, &out)
	return out, err
}
