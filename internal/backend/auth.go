package backend

import (
	"context"
	"net/http"

	"guardian-gateway/internal/model"
)

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type robotLoginBody struct {
	SerialNumber string `json:"serialNumber"`
	AuthCode     string `json:"authCode"`
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

func (c *Client) Login(ctx context.Context, email, password string) (model.AuthTokens, error) {
	var tokens model.AuthTokens
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   loginBody{Email: email, Password: password},
		noAuth: true,
	}, &tokens)
	return tokens, err
}

func (c *Client) Signup(ctx context.Context, req model.SignupRequest) (model.AuthTokens, error) {
	var tokens model.AuthTokens
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/signup", body: req, noAuth: true}, &tokens)
	return tokens, err
}

// Refresh sends the in-memory refresh token when there is one; otherwise the
// backend is expected to use its own cookie.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (model.AuthTokens, error) {
	r := request{method: http.MethodPost, path: "/auth/refresh"}
	if refreshToken != "" {
		r.body = refreshBody{RefreshToken: refreshToken}
	}
	var tokens model.AuthTokens
	err := c.do(ctx, r, &tokens)
	return tokens, err
}

func (c *Client) RobotLogin(ctx context.Context, serialNumber, authCode string) (model.AuthTokens, error) {
	var tokens model.AuthTokens
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/robot/login",
		body:   robotLoginBody{SerialNumber: serialNumber, AuthCode: authCode},
		noAuth: true,
	}, &tokens)
	return tokens, err
}
