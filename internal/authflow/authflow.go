// Package authflow runs the login, signup, robot login, refresh and logout
// sequences against the backend and the session store.
package authflow

import (
	"context"
	"errors"
	"log/slog"

	"guardian-gateway/internal/auth"
	"guardian-gateway/internal/backend"
	"guardian-gateway/internal/model"
	"guardian-gateway/internal/session"
)

var ErrMissingAccessToken = errors.New("auth response has no access token")

// Backend is the part of backend.Client the flows call.
type Backend interface {
	Login(ctx context.Context, email, password string) (model.AuthTokens, error)
	Signup(ctx context.Context, req model.SignupRequest) (model.AuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (model.AuthTokens, error)
	RobotLogin(ctx context.Context, serialNumber, authCode string) (model.AuthTokens, error)
}

// Navigator receives the landing route. Every successful flow calls it once.
type Navigator interface {
	Navigate(target string)
}

type NavigatorFunc func(target string)

func (f NavigatorFunc) Navigate(target string) { f(target) }

// Recorder observes flow outcomes.
type Recorder interface {
	RecordAuth(flow string, ok bool)
}

type Service struct {
	backend  Backend
	session  *session.Store
	logger   *slog.Logger
	recorder Recorder
	onLogout []func()
}

type Options struct {
	Backend  Backend
	Session  *session.Store
	Logger   *slog.Logger
	Recorder Recorder
}

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: opts.Backend, session: opts.Session, logger: logger, recorder: opts.Recorder}
}

// OnLogout registers teardown work that runs after the session is cleared.
func (s *Service) OnLogout(fn func()) {
	s.onLogout = append(s.onLogout, fn)
}

func (s *Service) Login(ctx context.Context, email, password string, nav Navigator) error {
	tokens, err := s.backend.Login(ctx, email, password)
	if err != nil {
		s.record("login", false)
		return err
	}
	return s.complete(ctx, "login", tokens, nav)
}

func (s *Service) RobotLogin(ctx context.Context, serialNumber, authCode string, nav Navigator) error {
	tokens, err := s.backend.RobotLogin(ctx, serialNumber, authCode)
	if err != nil {
		s.record("robot_login", false)
		return err
	}
	return s.complete(ctx, "robot_login", tokens, nav)
}

// Signup tolerates an empty access token: the guardian is sent to the login
// screen and the session stays untouched.
func (s *Service) Signup(ctx context.Context, req model.SignupRequest, nav Navigator) error {
	tokens, err := s.backend.Signup(ctx, req)
	if err != nil {
		s.record("signup", false)
		return err
	}
	if tokens.AccessToken == "" {
		s.record("signup", true)
		nav.Navigate(auth.RouteLogin)
		return nil
	}
	return s.complete(ctx, "signup", tokens, nav)
}

// Refresh swaps in new tokens without navigating.
func (s *Service) Refresh(ctx context.Context) error {
	tokens, err := s.backend.Refresh(ctx, s.session.RefreshToken())
	if err != nil {
		s.record("refresh", false)
		return err
	}
	if tokens.AccessToken == "" {
		s.record("refresh", false)
		return missingToken("refresh")
	}
	if err := s.session.SetTokens(ctx, tokens); err != nil {
		s.record("refresh", false)
		return err
	}
	s.record("refresh", true)
	return nil
}

func (s *Service) Logout(ctx context.Context, nav Navigator) error {
	err := s.session.Logout(ctx)
	for _, fn := range s.onLogout {
		fn()
	}
	if err != nil {
		s.logger.Warn("logout: storage cleanup failed", slog.String("error", err.Error()))
	}
	nav.Navigate(auth.RouteLogin)
	return err
}

func (s *Service) complete(ctx context.Context, flow string, tokens model.AuthTokens, nav Navigator) error {
	if tokens.AccessToken == "" {
		s.record(flow, false)
		return missingToken(flow)
	}
	target := auth.LandingRoute(tokens)
	if err := s.session.SetTokens(ctx, tokens); err != nil {
		s.record(flow, false)
		return err
	}
	s.record(flow, true)
	s.logger.Info("authenticated", slog.String("flow", flow), slog.String("redirect", target))
	nav.Navigate(target)
	return nil
}

func (s *Service) record(flow string, ok bool) {
	if s.recorder != nil {
		s.recorder.RecordAuth(flow, ok)
	}
}

func missingToken(op string) error {
	return &backend.MalformedResponseError{Op: op, Field: "accessToken", Err: ErrMissingAccessToken}
}
