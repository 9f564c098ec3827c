package authflow

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"guardian-gateway/internal/backend"
	"guardian-gateway/internal/model"
	"guardian-gateway/internal/session"
	"guardian-gateway/internal/storage"
)

type fakeBackend struct {
	tokens      model.AuthTokens
	err         error
	refreshSeen string
}

func (f *fakeBackend) Login(context.Context, string, string) (model.AuthTokens, error) {
	return f.tokens, f.err
}

func (f *fakeBackend) Signup(context.Context, model.SignupRequest) (model.AuthTokens, error) {
	return f.tokens, f.err
}

func (f *fakeBackend) Refresh(_ context.Context, refreshToken string) (model.AuthTokens, error) {
	f.refreshSeen = refreshToken
	return f.tokens, f.err
}

func (f *fakeBackend) RobotLogin(context.Context, string, string) (model.AuthTokens, error) {
	return f.tokens, f.err
}

type navRecorder struct {
	targets []string
}

func (n *navRecorder) Navigate(target string) { n.targets = append(n.targets, target) }

func token(payload string) string {
	return "h." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".s"
}

func newService(fb *fakeBackend) (*Service, *session.Store, *storage.MemoryStorage) {
	st := storage.NewMemory()
	sess := session.New(st, nil)
	return New(Options{Backend: fb, Session: sess}), sess, st
}

func TestLogin_FamilyRoutesToElder(t *testing.T) {
	fb := &fakeBackend{tokens: model.AuthTokens{AccessToken: token(`{"sub":"2","role":"FAMILY","elderId":7}`)}}
	svc, sess, _ := newService(fb)
	nav := &navRecorder{}

	if err := svc.Login(context.Background(), "a@b.c", "pw", nav); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if len(nav.targets) != 1 || nav.targets[0] != "/elders/7" {
		t.Fatalf("expected single navigation to /elders/7, got %v", nav.targets)
	}
	if ident := sess.Identity(); ident == nil || ident.Role != model.RoleFamily {
		t.Fatalf("expected FAMILY identity, got %+v", ident)
	}
}

func TestLogin_MissingAccessToken(t *testing.T) {
	fb := &fakeBackend{tokens: model.AuthTokens{RefreshToken: "r"}}
	svc, sess, _ := newService(fb)
	nav := &navRecorder{}

	err := svc.Login(context.Background(), "a", "b", nav)
	if !errors.Is(err, ErrMissingAccessToken) {
		t.Fatalf("expected ErrMissingAccessToken, got %v", err)
	}
	var malformed *backend.MalformedResponseError
	if !errors.As(err, &malformed) || malformed.Field != "accessToken" {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
	if len(nav.targets) != 0 {
		t.Fatalf("expected no navigation, got %v", nav.targets)
	}
	if sess.Snapshot().HasToken() {
		t.Fatalf("expected no stored token")
	}
}

func TestRobotLogin_MissingAccessToken(t *testing.T) {
	svc, _, _ := newService(&fakeBackend{})
	nav := &navRecorder{}
	if err := svc.RobotLogin(context.Background(), "SN", "code", nav); !errors.Is(err, ErrMissingAccessToken) {
		t.Fatalf("expected ErrMissingAccessToken, got %v", err)
	}
}

func TestRobotLogin_RoutesToLCD(t *testing.T) {
	fb := &fakeBackend{tokens: model.AuthTokens{AccessToken: token(`{"sub":"31","role":"ROBOT"}`)}}
	svc, _, _ := newService(fb)
	nav := &navRecorder{}
	if err := svc.RobotLogin(context.Background(), "SN", "code", nav); err != nil {
		t.Fatalf("RobotLogin: %v", err)
	}
	if len(nav.targets) != 1 || nav.targets[0] != "/robots/31/lcd" {
		t.Fatalf("unexpected navigation %v", nav.targets)
	}
}

func TestSignup_EmptyTokenGoesToLogin(t *testing.T) {
	fb := &fakeBackend{tokens: model.AuthTokens{AccessToken: ""}}
	svc, sess, st := newService(fb)
	nav := &navRecorder{}

	if err := svc.Signup(context.Background(), model.SignupRequest{Email: "a"}, nav); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if len(nav.targets) != 1 || nav.targets[0] != "/login" {
		t.Fatalf("expected /login, got %v", nav.targets)
	}
	if sess.Snapshot().Tokens != nil {
		t.Fatalf("expected tokens unset")
	}
	if _, err := st.Get(context.Background(), storage.KeyAccessToken); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected nothing persisted")
	}
}

func TestSignup_WithTokenLogsIn(t *testing.T) {
	fb := &fakeBackend{tokens: model.AuthTokens{AccessToken: token(`{"sub":"5","role":"WORKER"}`)}}
	svc, _, _ := newService(fb)
	nav := &navRecorder{}
	if err := svc.Signup(context.Background(), model.SignupRequest{Email: "a"}, nav); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if len(nav.targets) != 1 || nav.targets[0] != "/elders" {
		t.Fatalf("unexpected navigation %v", nav.targets)
	}
}

func TestBackendErrorPropagates(t *testing.T) {
	boom := errors.New("network down")
	svc, _, _ := newService(&fakeBackend{err: boom})
	nav := &navRecorder{}
	if err := svc.Login(context.Background(), "a", "b", nav); !errors.Is(err, boom) {
		t.Fatalf("expected network error, got %v", err)
	}
	if len(nav.targets) != 0 {
		t.Fatalf("expected no navigation")
	}
}

func TestRefresh_UsesInMemoryRefreshToken(t *testing.T) {
	fb := &fakeBackend{tokens: model.AuthTokens{AccessToken: token(`{"sub":"1","role":"WORKER"}`), RefreshToken: "r1"}}
	svc, sess, _ := newService(fb)
	nav := &navRecorder{}
	if err := svc.Login(context.Background(), "a", "b", nav); err != nil {
		t.Fatalf("Login: %v", err)
	}

	fb.tokens = model.AuthTokens{AccessToken: token(`{"sub":"1","role":"WORKER","exp":99999999999}`)}
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if fb.refreshSeen != "r1" {
		t.Fatalf("expected refresh token r1 sent, got %q", fb.refreshSeen)
	}
	if sess.AccessToken() != fb.tokens.AccessToken {
		t.Fatalf("expected new access token stored")
	}
	if len(nav.targets) != 1 {
		t.Fatalf("refresh must not navigate")
	}

	fb.tokens = model.AuthTokens{}
	if err := svc.Refresh(context.Background()); !errors.Is(err, ErrMissingAccessToken) {
		t.Fatalf("expected ErrMissingAccessToken, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	fb := &fakeBackend{tokens: model.AuthTokens{AccessToken: token(`{"sub":"1","role":"WORKER"}`)}}
	svc, sess, st := newService(fb)
	nav := &navRecorder{}
	torn := 0
	svc.OnLogout(func() { torn++ })

	_ = svc.Login(context.Background(), "a", "b", nav)
	if err := svc.Logout(context.Background(), nav); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if torn != 1 {
		t.Fatalf("expected teardown hook to run once")
	}
	if nav.targets[len(nav.targets)-1] != "/login" {
		t.Fatalf("expected /login after logout, got %v", nav.targets)
	}
	if sess.Identity() != nil || sess.RootRedirect() != "/login" {
		t.Fatalf("expected no identity after logout")
	}
	if _, err := st.Get(context.Background(), storage.KeyAccessToken); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected accessToken key removed")
	}
}
