// Package client talks to a groupchat server: a realtime.Store over the
// tree service and a session provider over the auth service.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/groupchat/internal/models"
	"github.com/mmynk/groupchat/pkg/api"
	"github.com/mmynk/groupchat/pkg/api/apiconnect"
)

// Session holds the signed-in user's token and identity.
type Session struct {
	auth apiconnect.AuthServiceClient

	mu        sync.RWMutex
	token     string
	user      api.User
	expiresAt time.Time
}

// NewSession creates a signed-out session against the auth service at
// baseURL.
func NewSession(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Session {
	s := &Session{}
	opts = append(opts, connect.WithInterceptors(BearerInterceptor(s)))
	s.auth = apiconnect.NewAuthServiceClient(httpClient, baseURL, opts...)
	return s
}

// Token returns the current bearer token, or "" when signed out or expired.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || (!s.expiresAt.IsZero() && time.Now().After(s.expiresAt)) {
		return ""
	}
	return s.token
}

// CurrentSession returns the signed-in user, if any.
func (s *Session) CurrentSession() (models.Session, bool) {
	if s.Token() == "" {
		return models.Session{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Session{UserID: s.user.ID, Email: s.user.Email}, true
}

// SignIn authenticates with email and password.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	resp, err := s.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: email, Password: password}))
	if err != nil {
		return fmt.Errorf("failed to sign in: %w", err)
	}
	s.set(resp.Msg.Token, resp.Msg.User, resp.Msg.ExpiresAt)
	slog.Info("Signed in", "user_id", resp.Msg.User.ID)
	return nil
}

// Register creates an account and signs in with it.
func (s *Session) Register(ctx context.Context, email, password, displayName, telephone string) error {
	resp, err := s.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
		Telephone:   telephone,
	}))
	if err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}
	s.set(resp.Msg.Token, resp.Msg.User, resp.Msg.ExpiresAt)
	slog.Info("Registered", "user_id", resp.Msg.User.ID)
	return nil
}

// SignOut revokes the session on the server and forgets the token. A
// session the server already rejects counts as signed out.
func (s *Session) SignOut(ctx context.Context) error {
	if s.Token() == "" {
		s.clear()
		return nil
	}
	if _, err := s.auth.Logout(ctx, connect.NewRequest(&api.LogoutRequest{})); err != nil {
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			return fmt.Errorf("failed to sign out: %w", err)
		}
	}
	s.clear()
	slog.Info("Signed out")
	return nil
}

func (s *Session) set(token string, user api.User, expiresAt int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = user
	s.expiresAt = time.Time{}
	if expiresAt > 0 {
		s.expiresAt = time.Unix(expiresAt, 0)
	}
}

func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = api.User{}
	s.expiresAt = time.Time{}
}
