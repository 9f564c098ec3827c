package auth

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"guardian-gateway/internal/model"
)

// Claims is the subset of the access token payload the gateway reads. The
// signature is never checked here; the backend owns verification.
type Claims struct {
	Subject   model.FlexString `json:"sub"`
	Role      model.Role       `json:"role,omitempty"`
	Email     string           `json:"email,omitempty"`
	ElderID   model.FlexInt    `json:"elderId"`
	ExpiresAt *jwt.NumericDate `json:"exp,omitempty"`
}

func (c Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(c.ExpiresAt.Time)
}

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// ParseClaims decodes the middle segment of token. It reports false for a
// token with fewer than two segments, an undecodable segment, or a payload
// without a subject.
func ParseClaims(token string) (Claims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 || parts[1] == "" {
		return Claims{}, false
	}

	data, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return Claims{}, false
	}

	var claims Claims
	if err := json.Unmarshal(data, &claims); err != nil {
		return Claims{}, false
	}
	claims.Subject = model.FlexString(strings.TrimSpace(string(claims.Subject)))
	if claims.Subject == "" {
		return Claims{}, false
	}
	claims.Role = normalizeRole(claims.Role)
	return claims, true
}

// DeriveIdentity builds the session identity for tokens. It returns nil when
// there is no access token or its claims are absent. Role and elder id fall
// back to the profile embedded in the token response.
func DeriveIdentity(tokens model.AuthTokens) *model.Identity {
	if tokens.AccessToken == "" {
		return nil
	}
	claims, ok := ParseClaims(tokens.AccessToken)
	if !ok {
		return nil
	}

	f := resolveFacts(claims, true, tokens)
	ident := &model.Identity{
		Subject: f.subject,
		Role:    f.role,
		Email:   claims.Email,
		ElderID: f.elderID,
	}
	if ident.Email == "" && tokens.User != nil {
		ident.Email = tokens.User.Email
	}
	if id, err := strconv.ParseInt(f.subject, 10, 64); err == nil {
		ident.ID = id
	}
	return ident
}

type facts struct {
	role    model.Role
	subject string
	elderID *int64
}

func resolveFacts(claims Claims, claimsOK bool, tokens model.AuthTokens) facts {
	var f facts
	if claimsOK {
		f.role = claims.Role
		f.subject = string(claims.Subject)
		f.elderID = claims.ElderID.Ptr()
	}

	if f.role == "" {
		switch {
		case tokens.User != nil && tokens.User.Role != "":
			f.role = normalizeRole(tokens.User.Role)
		case tokens.Robot != nil:
			f.role = model.RoleRobot
		}
	}
	if f.elderID == nil && tokens.User != nil {
		f.elderID = tokens.User.ElderID.Ptr()
	}
	if f.subject == "" {
		switch {
		case tokens.User != nil && tokens.User.ID.Set:
			f.subject = strconv.FormatInt(tokens.User.ID.Value, 10)
		case tokens.Robot != nil && tokens.Robot.ID.Set:
			f.subject = strconv.FormatInt(tokens.Robot.ID.Value, 10)
		}
	}
	return f
}

func normalizeRole(r model.Role) model.Role {
	return model.Role(strings.ToUpper(strings.TrimSpace(string(r))))
}
