// Package session owns the guardian's tokens and the identity derived from
// them. It is created once at startup and handed to every component that
// needs it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"guardian-gateway/internal/auth"
	"guardian-gateway/internal/model"
	"guardian-gateway/internal/storage"
)

var ErrEmptyAccessToken = errors.New("session: empty access token")

type Snapshot struct {
	Tokens   *model.AuthTokens
	Identity *model.Identity
}

func (s Snapshot) HasToken() bool {
	return s.Tokens != nil && s.Tokens.AccessToken != ""
}

type Store struct {
	storage storage.Storage
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	tokens   *model.AuthTokens
	identity *model.Identity

	listenersMu sync.Mutex
	listeners   map[int]func(Snapshot)
	nextID      int
}

func New(st storage.Storage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		storage:   st,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]func(Snapshot)),
	}
}

// Init seeds the session from durable storage. A missing key leaves the
// session empty. A token whose exp has passed cannot be refreshed, since
// the refresh token is never persisted, so it is deleted instead.
func (s *Store) Init(ctx context.Context) error {
	token, err := s.storage.Get(ctx, storage.KeyAccessToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("session: read access token: %w", err)
	}
	if token == "" {
		return nil
	}
	if claims, ok := auth.ParseClaims(token); ok && claims.Expired(s.now()) {
		s.logger.Info("session: dropping expired access token", slog.Time("expired_at", claims.ExpiresAt.Time))
		if err := s.storage.Delete(ctx, storage.KeyAccessToken); err != nil {
			return fmt.Errorf("session: clear expired token: %w", err)
		}
		return nil
	}

	tokens := model.AuthTokens{AccessToken: token}
	ident := auth.DeriveIdentity(tokens)
	s.mu.Lock()
	s.tokens = &tokens
	s.identity = ident
	s.mu.Unlock()

	if ident == nil {
		s.logger.Warn("session: persisted access token has no usable claims")
	}
	s.notify()
	return nil
}

// SetTokens persists the access token, drops the legacy refresh token key
// and recomputes the identity. The refresh token stays in memory only.
func (s *Store) SetTokens(ctx context.Context, tokens model.AuthTokens) error {
	if tokens.AccessToken == "" {
		return ErrEmptyAccessToken
	}
	if err := s.storage.Set(ctx, storage.KeyAccessToken, tokens.AccessToken); err != nil {
		return fmt.Errorf("session: persist access token: %w", err)
	}
	if err := s.storage.Delete(ctx, storage.KeyRefreshToken); err != nil {
		s.logger.Warn("session: clear refresh token key failed", slog.String("error", err.Error()))
	}

	ident := auth.DeriveIdentity(tokens)
	s.mu.Lock()
	s.tokens = &tokens
	s.identity = ident
	s.mu.Unlock()

	s.notify()
	return nil
}

// Logout clears memory first, then both durable keys.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.tokens = nil
	s.identity = nil
	s.mu.Unlock()

	err := s.storage.Delete(ctx, storage.KeyAccessToken, storage.KeyRefreshToken)
	s.notify()
	if err != nil {
		return fmt.Errorf("session: clear storage: %w", err)
	}
	return nil
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	var snap Snapshot
	if s.tokens != nil {
		t := *s.tokens
		snap.Tokens = &t
	}
	snap.Identity = cloneIdentity(s.identity)
	return snap
}

func (s *Store) Identity() *model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneIdentity(s.identity)
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil {
		return ""
	}
	return s.tokens.AccessToken
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil {
		return ""
	}
	return s.tokens.RefreshToken
}

// RootRedirect answers the initial-screen question for the current state.
func (s *Store) RootRedirect() string {
	snap := s.Snapshot()
	return auth.RootRedirect(snap.Identity, snap.HasToken())
}

// Watch registers fn for every session change. fn runs on the goroutine that
// changed the session, outside the store's locks.
func (s *Store) Watch(fn func(Snapshot)) (cancel func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

func (s *Store) notify() {
	snap := s.Snapshot()
	s.listenersMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func cloneIdentity(ident *model.Identity) *model.Identity {
	if ident == nil {
		return nil
	}
	c := *ident
	if ident.ElderID != nil {
		v := *ident.ElderID
		c.ElderID = &v
	}
	return &c
}
