package service

import (
	"context"
	"encoding/json"
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
	"github.com/mmynk/groupchat/internal/storage/sqlite"
	"github.com/mmynk/groupchat/pkg/api"
	"github.com/mmynk/groupchat/pkg/api/apiconnect"
)

type testClients struct {
	auth apiconnect.AuthServiceClient
	tree apiconnect.TreeServiceClient
}

// setupTestServer creates a test server with both TreeService and AuthService
// behind the same interceptors as the real server.
func setupTestServer(t *testing.T) testClients {
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

	interceptors := connect.WithInterceptors(
		middleware.RequireAuth(jwtManager, store, apiconnect.PublicProcedures),
		middleware.LoggingInterceptor(),
	)

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewTreeServiceHandler(NewTreeService(hub), interceptors))
	mux.Handle(apiconnect.NewAuthServiceHandler(NewAuthService(authenticator, jwtManager, store, store, hub, logger), interceptors))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return testClients{
		auth: apiconnect.NewAuthServiceClient(http.DefaultClient, server.URL),
		tree: apiconnect.NewTreeServiceClient(http.DefaultClient, server.URL),
	}
}

func register(t *testing.T, c testClients, email, name string) *api.RegisterResponse {
	t.Helper()
	resp, err := c.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:       email,
		Password:    "password123",
		DisplayName: name,
		Telephone:   "0600000000",
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return resp.Msg
}

func withToken[T any](msg *T, token string) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+token)
	return req
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Errorf("code: expected %v, got %v (%v)", want, got, err)
	}
}

func TestRegister(t *testing.T) {
	c := setupTestServer(t)
	ctx := context.Background()

	resp := register(t, c, "ada@example.com", "Ada")
	if resp.Token == "" {
		t.Fatal("expected a token")
	}
	if resp.User.ID == "" {
		t.Fatal("expected a user ID")
	}
	if resp.ExpiresAt <= time.Now().Unix() {
		t.Errorf("expected expiry in the future, got %d", resp.ExpiresAt)
	}

	t.Run("seeds Users and listProfil", func(t *testing.T) {
		users, err := c.tree.Get(ctx, withToken(&api.GetRequest{Collection: models.CollectionUsers}, resp.Token))
		if err != nil {
			t.Fatalf("Get Users failed: %v", err)
		}
		if len(users.Msg.Snapshot.Children) != 1 {
			t.Fatalf("expected 1 user entry, got %d", len(users.Msg.Snapshot.Children))
		}
		var entry models.UserEntry
		if err := json.Unmarshal(users.Msg.Snapshot.Children[0].Value, &entry); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if entry.Nom != "Ada" {
			t.Errorf("nom: expected 'Ada', got %q", entry.Nom)
		}

		contacts, err := c.tree.Get(ctx, withToken(&api.GetRequest{Collection: models.CollectionContacts}, resp.Token))
		if err != nil {
			t.Fatalf("Get listProfil failed: %v", err)
		}
		var profile models.Profile
		if err := json.Unmarshal(contacts.Msg.Snapshot.Children[0].Value, &profile); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		want := models.Profile{ID: resp.User.ID, Nom: "Ada", Telephone: "0600000000"}
		if diff := cmp.Diff(want, profile); diff != "" {
			t.Errorf("profile mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := c.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
			Email: "ADA@example.com", Password: "password123", DisplayName: "Other",
		}))
		assertCode(t, err, connect.CodeAlreadyExists)
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := c.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
			Email: "bob@example.com", Password: "short", DisplayName: "Bob",
		}))
		assertCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("missing display name", func(t *testing.T) {
		_, err := c.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
			Email: "bob@example.com", Password: "password123",
		}))
		assertCode(t, err, connect.CodeInvalidArgument)
	})
}

func TestLoginLogout(t *testing.T) {
	c := setupTestServer(t)
	ctx := context.Background()
	registered := register(t, c, "ada@example.com", "Ada")

	_, err := c.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "ada@example.com", Password: "wrong-password"}))
	assertCode(t, err, connect.CodeUnauthenticated)

	login, err := c.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "ada@example.com", Password: "password123"}))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.Msg.User.ID != registered.User.ID {
		t.Errorf("user: expected %s, got %s", registered.User.ID, login.Msg.User.ID)
	}

	who, err := c.auth.WhoAmI(ctx, withToken(&api.WhoAmIRequest{}, login.Msg.Token))
	if err != nil {
		t.Fatalf("WhoAmI failed: %v", err)
	}
	if who.Msg.User.Email != "ada@example.com" || who.Msg.User.DisplayName != "Ada" {
		t.Errorf("unexpected user: %+v", who.Msg.User)
	}

	if _, err := c.auth.Logout(ctx, withToken(&api.LogoutRequest{}, login.Msg.Token)); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	_, err = c.auth.WhoAmI(ctx, withToken(&api.WhoAmIRequest{}, login.Msg.Token))
	assertCode(t, err, connect.CodeUnauthenticated)

	// Other sessions of the same user stay valid.
	if _, err := c.auth.WhoAmI(ctx, withToken(&api.WhoAmIRequest{}, registered.Token)); err != nil {
		t.Errorf("expected registration session to remain valid, got %v", err)
	}
}

func TestTreeRequiresAuth(t *testing.T) {
	c := setupTestServer(t)

	_, err := c.tree.Get(context.Background(), connect.NewRequest(&api.GetRequest{Collection: models.CollectionGroups}))
	assertCode(t, err, connect.CodeUnauthenticated)

	_, err = c.tree.Get(context.Background(), withToken(&api.GetRequest{Collection: models.CollectionGroups}, "not-a-token"))
	assertCode(t, err, connect.CodeUnauthenticated)
}

func TestTreeWrites(t *testing.T) {
	c := setupTestServer(t)
	ctx := context.Background()
	ada := register(t, c, "ada@example.com", "Ada")
	bob := register(t, c, "bob@example.com", "Bob")

	t.Run("owner may update own profile", func(t *testing.T) {
		_, err := c.tree.Update(ctx, withToken(&api.UpdateRequest{
			Collection: models.CollectionProfiles,
			Key:        ada.User.ID,
			Fields: map[string]json.RawMessage{
				"id":  json.RawMessage(`"` + ada.User.ID + `"`),
				"nom": json.RawMessage(`"Ada"`),
			},
		}, ada.Token))
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	})

	t.Run("others may not", func(t *testing.T) {
		_, err := c.tree.Update(ctx, withToken(&api.UpdateRequest{
			Collection: models.CollectionProfiles,
			Key:        ada.User.ID,
			Fields:     map[string]json.RawMessage{"nom": json.RawMessage(`"Mallory"`)},
		}, bob.Token))
		assertCode(t, err, connect.CodePermissionDenied)
	})

	t.Run("groups are shared", func(t *testing.T) {
		key, err := c.tree.NewKey(ctx, withToken(&api.NewKeyRequest{Collection: models.CollectionGroups}, bob.Token))
		if err != nil {
			t.Fatalf("NewKey failed: %v", err)
		}
		group := models.NewGroup(key.Msg.Key, "Lunch", bob.User.ID, []string{ada.User.ID})
		value, _ := json.Marshal(group)
		if _, err := c.tree.Set(ctx, withToken(&api.SetRequest{
			Collection: models.CollectionGroups, Key: key.Msg.Key, Value: value,
		}, bob.Token)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	})

	t.Run("invalid names", func(t *testing.T) {
		_, err := c.tree.Set(ctx, withToken(&api.SetRequest{
			Collection: "Groups", Key: "a/b", Value: json.RawMessage(`{}`),
		}, bob.Token))
		assertCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := c.tree.Set(ctx, withToken(&api.SetRequest{
			Collection: "Groups", Key: "g1", Value: json.RawMessage(`{`),
		}, bob.Token))
		if err == nil {
			t.Fatal("expected error for invalid JSON")
		}
	})
}

func TestTreeSubscribe(t *testing.T) {
	c := setupTestServer(t)
	ada := register(t, c, "ada@example.com", "Ada")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := c.tree.Subscribe(ctx, withToken(&api.SubscribeRequest{Collection: models.CollectionGroups}, ada.Token))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer stream.Close()

	if !stream.Receive() {
		t.Fatalf("expected initial snapshot, got %v", stream.Err())
	}
	if n := len(stream.Msg().Children); n != 0 {
		t.Fatalf("expected empty initial snapshot, got %d children", n)
	}

	value, _ := json.Marshal(models.NewGroup("g1", "Lunch", ada.User.ID, nil))
	if _, err := c.tree.Set(ctx, withToken(&api.SetRequest{
		Collection: models.CollectionGroups, Key: "g1", Value: value,
	}, ada.Token)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if !stream.Receive() {
		t.Fatalf("expected snapshot after write, got %v", stream.Err())
	}
	snap := stream.Msg()
	if len(snap.Children) != 1 || snap.Children[0].Key != "g1" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	var group models.Group
	if err := json.Unmarshal(snap.Children[0].Value, &group); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if diff := cmp.Diff([]string{ada.User.ID}, group.Members); diff != "" {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}
}
