package auth

import (
	"strconv"

	"guardian-gateway/internal/model"
)

const (
	RouteHome   = "/"
	RouteLogin  = "/login"
	RouteElders = "/elders"
)

func ElderRoute(elderID int64) string {
	return RouteElders + "/" + strconv.FormatInt(elderID, 10)
}

func RobotLCDRoute(subject string) string {
	return "/robots/" + subject + "/lcd"
}

// LandingRoute picks the screen to open after login, signup or robot login.
// Claims win over the profile embedded in the response.
func LandingRoute(tokens model.AuthTokens) string {
	claims, ok := ParseClaims(tokens.AccessToken)
	f := resolveFacts(claims, ok, tokens)

	switch f.role {
	case model.RoleWorker:
		return RouteElders
	case model.RoleFamily:
		if f.elderID != nil {
			return ElderRoute(*f.elderID)
		}
		return RouteElders
	case model.RoleRobot:
		if f.subject != "" {
			return RobotLCDRoute(f.subject)
		}
		return RouteLogin
	default:
		return RouteHome
	}
}

// RootRedirect picks the initial screen for an already persisted session.
func RootRedirect(ident *model.Identity, hasToken bool) string {
	if !hasToken || ident == nil {
		return RouteLogin
	}
	switch ident.Role {
	case model.RoleRobot:
		return RobotLCDRoute(ident.Subject)
	case model.RoleFamily:
		if ident.ElderID != nil {
			return ElderRoute(*ident.ElderID)
		}
	}
	return RouteElders
}
