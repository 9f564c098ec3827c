package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"guardian-gateway/internal/auth"
	"guardian-gateway/internal/model"
)

const identityContextKey = "identity"

// SessionSource is the part of session.Store the guard reads.
type SessionSource interface {
	AccessToken() string
	Identity() *model.Identity
}

func IdentityFromContext(c *gin.Context) (*model.Identity, bool) {
	v, ok := c.Get(identityContextKey)
	if !ok {
		return nil, false
	}
	ident, ok := v.(*model.Identity)
	return ident, ok && ident != nil
}

// RequireSession rejects requests while the gateway holds no usable session.
// The UI is told where to go instead.
func RequireSession(src SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := src.Identity()
		if src.AccessToken() == "" || ident == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in", "redirect": auth.RouteLogin})
			c.Abort()
			return
		}
		c.Set(identityContextKey, ident)
		c.Next()
	}
}

// RequireRole narrows a route to the given roles. It must follow
// RequireSession.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := IdentityFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in", "redirect": auth.RouteLogin})
			c.Abort()
			return
		}
		for _, r := range roles {
			if ident.Role == r {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		c.Abort()
	}
}
