package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/groupchat/internal/auth"
	"github.com/mmynk/groupchat/internal/middleware"
	"github.com/mmynk/groupchat/internal/models"
	"github.com/mmynk/groupchat/internal/realtime"
	"github.com/mmynk/groupchat/internal/service"
	"github.com/mmynk/groupchat/internal/storage/sqlite"
	"github.com/mmynk/groupchat/pkg/api/apiconnect"
)

func setupTestServer(t *testing.T) string {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	hub := realtime.NewHub(store)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	interceptors := connect.WithInterceptors(middleware.RequireAuth(jwtManager, store, apiconnect.PublicProcedures))
	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewTreeServiceHandler(service.NewTreeService(hub), interceptors))
	mux.Handle(apiconnect.NewAuthServiceHandler(service.NewAuthService(authenticator, jwtManager, store, store, hub, logger), interceptors))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server.URL
}

func TestSession(t *testing.T) {
	url := setupTestServer(t)
	ctx := context.Background()
	session := NewSession(http.DefaultClient, url)

	if _, ok := session.CurrentSession(); ok {
		t.Fatal("expected no session before sign-in")
	}

	if err := session.Register(ctx, "ada@example.com", "password123", "Ada", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	current, ok := session.CurrentSession()
	if !ok {
		t.Fatal("expected a session after register")
	}
	if current.Email != "ada@example.com" || current.UserID == "" {
		t.Errorf("unexpected session: %+v", current)
	}

	if err := session.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if _, ok := session.CurrentSession(); ok {
		t.Error("expected no session after sign-out")
	}

	if err := session.SignIn(ctx, "ada@example.com", "wrong-password"); err == nil {
		t.Error("expected sign-in with wrong password to fail")
	}
	if err := session.SignIn(ctx, "ada@example.com", "password123"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if again, _ := session.CurrentSession(); again.UserID != current.UserID {
		t.Errorf("expected same user %s, got %s", current.UserID, again.UserID)
	}
}

func TestTree(t *testing.T) {
	url := setupTestServer(t)
	ctx := context.Background()

	session := NewSession(http.DefaultClient, url)
	if err := session.Register(ctx, "ada@example.com", "password123", "Ada", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	me, _ := session.CurrentSession()
	tree := NewTree(http.DefaultClient, url, session, WithReconnectDelay(10*time.Millisecond, 50*time.Millisecond))

	t.Run("subscribe sees writes", func(t *testing.T) {
		snaps := make(chan realtime.Snapshot, 16)
		sub, err := tree.Subscribe(ctx, models.CollectionGroups, func(s realtime.Snapshot) { snaps <- s })
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		defer sub.Release()

		waitFor := func(cond func(realtime.Snapshot) bool) realtime.Snapshot {
			t.Helper()
			timeout := time.After(5 * time.Second)
			for {
				select {
				case s := <-snaps:
					if cond(s) {
						return s
					}
				case <-timeout:
					t.Fatal("timed out waiting for snapshot")
				}
			}
		}
		waitFor(func(s realtime.Snapshot) bool { return true })

		key, err := tree.NewKey(ctx, models.CollectionGroups)
		if err != nil {
			t.Fatalf("NewKey failed: %v", err)
		}
		if err := tree.Set(ctx, models.CollectionGroups, key, models.NewGroup(key, "Lunch", me.UserID, nil)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		snap := waitFor(func(s realtime.Snapshot) bool { return s.Exists() })
		child, ok := snap.Child(key)
		if !ok {
			t.Fatalf("expected %s in snapshot", key)
		}
		var group models.Group
		if err := child.Decode(&group); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if diff := cmp.Diff(models.NewGroup(key, "Lunch", me.UserID, nil), group); diff != "" {
			t.Errorf("group mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("update merges", func(t *testing.T) {
		if err := tree.Update(ctx, models.CollectionProfiles, me.UserID, map[string]any{"id": me.UserID, "nom": "Ada", "imageBase64": "AAAA"}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if err := tree.Update(ctx, models.CollectionProfiles, me.UserID, map[string]any{"nom": "Ada L."}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		snap, err := tree.Get(ctx, models.CollectionProfiles)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		child, _ := snap.Child(me.UserID)
		var profile models.Profile
		if err := child.Decode(&profile); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if profile.Nom != "Ada L." || profile.ImageBase64 != "AAAA" {
			t.Errorf("unexpected profile: %+v", profile)
		}
	})

	t.Run("signed out calls fail", func(t *testing.T) {
		if err := session.SignOut(ctx); err != nil {
			t.Fatalf("SignOut failed: %v", err)
		}
		_, err := tree.Get(ctx, models.CollectionGroups)
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			t.Errorf("expected unauthenticated, got %v", err)
		}
	})

	t.Run("rejected subscription reports error", func(t *testing.T) {
		errs := make(chan error, 1)
		sub, err := tree.Subscribe(ctx, models.CollectionGroups, func(realtime.Snapshot) {},
			realtime.WithErrorHandler(func(err error) { errs <- err }))
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		defer sub.Release()

		select {
		case err := <-errs:
			if connect.CodeOf(err) != connect.CodeUnauthenticated {
				t.Errorf("expected unauthenticated, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for subscription error")
		}
	})
}
