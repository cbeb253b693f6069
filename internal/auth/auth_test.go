package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/groupchat/internal/models"
	"github.com/mmynk/groupchat/internal/storage/sqlite"
)

func newTestAuthenticator(t *testing.T) *PasswordAuthenticator {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
}

func TestPasswordAuthenticator(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t)

	user, err := a.Register(ctx, "  Ada@Example.com ", "Ada", "correct horse")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Errorf("Expected normalized email, got %q", user.Email)
	}
	if user.PasswordHash == "correct horse" {
		t.Error("Expected password to be hashed")
	}

	t.Run("duplicate email", func(t *testing.T) {
		_, err := a.Register(ctx, "ADA@example.com", "Ada 2", "another password")
		if !errors.Is(err, ErrEmailExists) {
			t.Errorf("Expected ErrEmailExists, got %v", err)
		}
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := a.Register(ctx, "bob@example.com", "Bob", "short")
		if !errors.Is(err, ErrWeakPassword) {
			t.Errorf("Expected ErrWeakPassword, got %v", err)
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := a.Register(ctx, "not-an-email", "Bob", "long enough")
		if !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("Expected ErrInvalidEmail, got %v", err)
		}
	})

	t.Run("authenticate", func(t *testing.T) {
		got, err := a.Authenticate(ctx, "ada@example.com", "correct horse")
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("Expected user %s, got %s", user.ID, got.ID)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := a.Authenticate(ctx, "ada@example.com", "wrong password")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := a.Authenticate(ctx, "nobody@example.com", "correct horse")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestJWTManager(t *testing.T) {
	user := &models.User{ID: "u1", Email: "ada@example.com"}

	t.Run("round trip", func(t *testing.T) {
		m := NewJWTManager("test-secret", time.Hour)
		token, issued, err := m.Generate(user)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		claims, err := m.Validate(token)
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if claims.UserID != "u1" || claims.Email != "ada@example.com" {
			t.Errorf("Unexpected claims: %+v", claims)
		}
		if claims.SessionID() == "" || claims.SessionID() != issued.SessionID() {
			t.Errorf("Expected session id %q, got %q", issued.SessionID(), claims.SessionID())
		}
	})

	t.Run("every token gets its own session", func(t *testing.T) {
		m := NewJWTManager("test-secret", time.Hour)
		_, a, _ := m.Generate(user)
		_, b, _ := m.Generate(user)
		if a.SessionID() == b.SessionID() {
			t.Error("Expected distinct session ids")
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, _, _ := NewJWTManager("one", time.Hour).Generate(user)
		_, err := NewJWTManager("two", time.Hour).Validate(token)
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		m := NewJWTManager("test-secret", -time.Minute)
		token, _, _ := m.Generate(user)
		_, err := m.Validate(token)
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := NewJWTManager("test-secret", time.Hour).Validate(strings.Repeat("x", 20))
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}
