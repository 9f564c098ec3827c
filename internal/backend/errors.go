package backend

import (
	"errors"
	"fmt"
)

var ErrNoRobot = errors.New("backend: elder has no assigned robot")

// APIError is an error envelope or a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend: status %d: [%s] %s", e.Status, e.Code, e.Message)
}

// MalformedResponseError reports a response that decoded but lacks a field the
// caller cannot do without.
type MalformedResponseError struct {
	Op    string
	Field string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("backend: malformed %s response: missing %s", e.Op, e.Field)
	}
	return fmt.Sprintf("backend: malformed %s response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
