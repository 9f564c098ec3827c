package notify

import (
	"encoding/json"
	"errors"
	"time"

	"guardian-gateway/internal/model"
)

var (
	ErrNoPayload = errors.New("notify: push has no payload")
	ErrInvalidID = errors.New("notify: push has no valid id")
)

type pushEnvelope struct {
	Payload   *pushPayload    `json:"payload"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type pushPayload struct {
	ID         model.FlexInt `json:"id"`
	Type       string        `json:"type"`
	Title      string        `json:"title"`
	Message    string        `json:"message"`
	ElderID    model.FlexInt `json:"elderId"`
	TargetPath string        `json:"targetPath"`
}

// DecodePush converts one push frame body into a notification. Unknown types
// become SYSTEM, a missing or unreadable timestamp becomes receivedAt, and the
// item always starts unread.
func DecodePush(body []byte, receivedAt time.Time) (model.Notification, error) {
	var env pushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return model.Notification{}, err
	}
	if env.Payload == nil {
		return model.Notification{}, ErrNoPayload
	}
	p := env.Payload
	if !p.ID.Set {
		return model.Notification{}, ErrInvalidID
	}

	createdAt := model.NewTimestamp(receivedAt)
	if len(env.Timestamp) > 0 {
		var ts model.Timestamp
		if err := json.Unmarshal(env.Timestamp, &ts); err == nil && !ts.IsZero() {
			createdAt = ts
		}
	}

	return model.Notification{
		ID:         p.ID.Value,
		Type:       model.ParseNotificationType(p.Type),
		Title:      p.Title,
		Message:    p.Message,
		ElderID:    p.ElderID.Ptr(),
		TargetPath: p.TargetPath,
		IsRead:     false,
		CreatedAt:  createdAt,
	}, nil
}
