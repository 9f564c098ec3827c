package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"guardian-gateway/internal/model"
)

type staticTokens string

func (s staticTokens) AccessToken() string { return string(s) }

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data, "timestamp": "2026-01-01T00:00:00Z"})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": map[string]string{"code": code, "message": msg}})
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/", Tokens: staticTokens("tok-1")})
}

func TestClient_LoginDoesNotSendBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not carry a bearer token")
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@b.c" || body["password"] != "pw" {
			t.Errorf("unexpected body %v", body)
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"accessToken": "acc", "refreshToken": "ref"})
	})

	tokens, err := c.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tokens.AccessToken != "acc" || tokens.RefreshToken != "ref" {
		t.Fatalf("unexpected tokens %+v", tokens)
	}
}

func TestClient_SendsBearerAndDecodesPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			t.Errorf("expected bearer, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.Query().Get("isRead") != "false" || r.URL.Query().Get("size") != "20" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"content":       []map[string]any{{"id": 3, "type": "MEDICATION", "title": "t", "message": "m", "isRead": false, "createdAt": "2026-01-02T03:04:05"}},
			"page":          0,
			"size":          20,
			"totalElements": 1,
			"totalPages":    1,
		})
	})

	unread := false
	page, err := c.Notifications(context.Background(), model.NotificationQuery{Page: 0, Size: 20, IsRead: &unread})
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(page.Content) != 1 || page.Content[0].ID != 3 || page.Content[0].Type != model.NotificationMedication {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, "AUTH_FAILED", "bad credentials")
	})

	_, err := c.Login(context.Background(), "a", "b")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Code != "AUTH_FAILED" || apiErr.Message != "bad credentials" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestClient_UnsuccessfulEnvelopeWith200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"success":false,"error":"robot offline"}`)
	})

	_, err := c.RobotStatus(context.Background(), "4")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "robot offline" {
		t.Fatalf("expected APIError with message, got %v", err)
	}
}

func TestClient_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>`)
	})

	_, err := c.RobotLCD(context.Background(), "4")
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
}

func TestClient_NoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/notifications/9/read" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.MarkRead(context.Background(), 9); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
}

func TestClient_UnreadCountShapes(t *testing.T) {
	for _, data := range []any{4, map[string]any{"count": 4}, map[string]any{"unreadCount": 4}} {
		data := data
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, http.StatusOK, data)
		})
		n, err := c.UnreadCount(context.Background())
		if err != nil || n != 4 {
			t.Fatalf("data %v: expected 4, got %d (%v)", data, n, err)
		}
	}
}

func TestClient_ElderRobotID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/elders/7":
			writeEnvelope(w, http.StatusOK, map[string]any{"id": 7, "name": "Kim", "robotId": 31})
		default:
			writeEnvelope(w, http.StatusOK, map[string]any{"id": 8, "name": "Lee"})
		}
	})

	id, err := c.ElderRobotID(context.Background(), "7")
	if err != nil || id != 31 {
		t.Fatalf("expected robot 31, got %d (%v)", id, err)
	}
	if _, err := c.ElderRobotID(context.Background(), "8"); !errors.Is(err, ErrNoRobot) {
		t.Fatalf("expected ErrNoRobot, got %v", err)
	}
}

func TestClient_SendCommandThrottled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{"accepted": true})
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, CommandRate: 0.001, CommandBurst: 1})
	cmd := model.RobotCommand{Command: "MOVE_FORWARD"}
	if _, err := c.SendCommand(context.Background(), "4", cmd); err != nil {
		t.Fatalf("first command: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.SendCommand(ctx, "4", cmd); err == nil {
		t.Fatalf("expected throttled command to fail on cancelled context")
	}
}
