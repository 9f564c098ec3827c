package model

import (
	"encoding/json"
	"strconv"
)

type Role string

const (
	RoleWorker Role = "WORKER"
	RoleFamily Role = "FAMILY"
	RoleRobot  Role = "ROBOT"
)

// Identity is derived from the current tokens and never stored on its own.
type Identity struct {
	ID      int64  `json:"id"`
	Subject string `json:"subject"`
	Role    Role   `json:"role"`
	Email   string `json:"email,omitempty"`
	ElderID *int64 `json:"elderId,omitempty"`
}

// UserKey is the identity id as used for push topics and hub rooms.
func (i Identity) UserKey() string {
	if i.ID != 0 {
		return strconv.FormatInt(i.ID, 10)
	}
	return i.Subject
}

type UserProfile struct {
	ID      FlexInt `json:"id"`
	Name    string  `json:"name,omitempty"`
	Email   string  `json:"email,omitempty"`
	Role    Role    `json:"role,omitempty"`
	ElderID FlexInt `json:"elderId"`
}

type RobotProfile struct {
	ID           FlexInt `json:"id"`
	SerialNumber string  `json:"serialNumber,omitempty"`
	ElderID      FlexInt `json:"elderId"`
}

type AuthTokens struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken,omitempty"`
	User         *UserProfile  `json:"user,omitempty"`
	Robot        *RobotProfile `json:"robot,omitempty"`
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
	Role     Role   `json:"role"`
}

type Elder struct {
	ID      FlexInt `json:"id"`
	Name    string  `json:"name,omitempty"`
	RobotID FlexInt `json:"robotId"`
}

type RobotCommand struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params,omitempty"`
}

type ResolveEmergencyRequest struct {
	Resolution string `json:"resolution"`
	Note       string `json:"note,omitempty"`
}

// RawDocument is a backend payload the gateway forwards without interpreting.
type RawDocument = json.RawMessage
