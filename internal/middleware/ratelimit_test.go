package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiterWithNow(2, time.Minute, func() time.Time { return clock })
	defer rl.Close()

	if !rl.Allow("ip") || !rl.Allow("ip") {
		t.Fatalf("expected the burst to be allowed")
	}
	if rl.Allow("ip") {
		t.Fatalf("expected deny once the burst is spent")
	}
	if !rl.Allow("other-ip") {
		t.Fatalf("expected other key unaffected")
	}

	clock = clock.Add(29 * time.Second)
	if rl.Allow("ip") {
		t.Fatalf("expected deny before a token is regained")
	}
	clock = clock.Add(2 * time.Second)
	if !rl.Allow("ip") {
		t.Fatalf("expected allow after half a window")
	}
	if rl.Allow("ip") {
		t.Fatalf("expected only one regained token")
	}
}

type denyCounter map[string]int

func (d denyCounter) RecordRateLimited(route string) { d[route]++ }

func TestRateLimitMiddleware_RecordsDenials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Close()
	denied := denyCounter{}

	r := gin.New()
	r.POST("/v1/auth/login", RateLimitMiddleware(rl, denied), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
	if denied["/v1/auth/login"] != 1 {
		t.Fatalf("expected one recorded denial, got %v", denied)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))
	if w.Header().Get("Retry-After") == "" || denied["/v1/auth/login"] != 2 {
		t.Fatalf("expected Retry-After and a second denial, got %v", denied)
	}
}
