package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"guardian-gateway/internal/authflow"
	"guardian-gateway/internal/model"
	"guardian-gateway/internal/session"
)

type AuthHandler struct {
	Flow    *authflow.Service
	Session *session.Store
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type robotLoginBody struct {
	SerialNumber string `json:"serialNumber"`
	AuthCode     string `json:"authCode"`
}

// redirectCapture remembers the single target an auth flow navigates to.
type redirectCapture struct {
	target string
}

func (r *redirectCapture) Navigate(target string) { r.target = target }

func (h *AuthHandler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	body.Email = strings.TrimSpace(body.Email)
	if body.Email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	nav := &redirectCapture{}
	if err := h.Flow.Login(c.Request.Context(), body.Email, body.Password, nav); err != nil {
		respondError(c, err)
		return
	}
	h.respondAuthenticated(c, nav.target)
}

func (h *AuthHandler) RobotLogin(c *gin.Context) {
	var body robotLoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.SerialNumber == "" || body.AuthCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Serial number and auth code are required"})
		return
	}

	nav := &redirectCapture{}
	if err := h.Flow.RobotLogin(c.Request.Context(), body.SerialNumber, body.AuthCode, nav); err != nil {
		respondError(c, err)
		return
	}
	h.respondAuthenticated(c, nav.target)
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var body model.SignupRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	body.Email = strings.TrimSpace(body.Email)
	body.Role = model.Role(strings.ToUpper(string(body.Role)))
	if body.Name == "" || body.Email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name, email and password are required"})
		return
	}
	if body.Role != model.RoleWorker && body.Role != model.RoleFamily {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	nav := &redirectCapture{}
	if err := h.Flow.Signup(c.Request.Context(), body, nav); err != nil {
		respondError(c, err)
		return
	}
	h.respondAuthenticated(c, nav.target)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	if err := h.Flow.Refresh(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": h.Session.Identity()})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	nav := &redirectCapture{}
	if err := h.Flow.Logout(c.Request.Context(), nav); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed", "redirect": nav.target})
		return
	}
	c.JSON(http.StatusOK, gin.H{"redirect": nav.target})
}

// respondAuthenticated reports the landing route. user is null when the
// token could not be decoded into an identity.
func (h *AuthHandler) respondAuthenticated(c *gin.Context, target string) {
	c.JSON(http.StatusOK, gin.H{"redirect": target, "user": h.Session.Identity()})
}
