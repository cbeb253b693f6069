package screens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mmynk/groupchat/internal/models"
)

func profileIDs(profiles []models.Profile) []string {
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	return ids
}

func seedContacts(t *testing.T, env *testEnv) {
	t.Helper()
	env.set(t, models.CollectionContacts, "u1", models.Profile{ID: "u1", Nom: "Ada", Telephone: "0601"})
	env.set(t, models.CollectionContacts, "u2", models.Profile{ID: "u2", Nom: "Bob", Telephone: "0602"})
	env.set(t, models.CollectionContacts, "u3", models.Profile{ID: "u3", Nom: "Cy", Telephone: "+33 603"})
	env.set(t, models.CollectionContacts, "u4", models.Profile{ID: "u4", Nom: "Di"})
}

func startPicker(t *testing.T, env *testEnv, want int) *ContactPicker {
	t.Helper()
	c := NewContactPicker(env.deps, "u1")
	t.Cleanup(c.Close)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, c.Changes(), func() bool { return len(c.Contacts()) == want })
	return c
}

func TestContactPickerListing(t *testing.T) {
	env := newTestEnv(t)
	seedContacts(t, env)
	// Same id under another key: the first occurrence in key order wins.
	env.set(t, models.CollectionContacts, "zz", models.Profile{ID: "u2", Nom: "Bob (old)"})
	// Self under another key is still excluded.
	env.set(t, models.CollectionContacts, "zy", models.Profile{ID: "u1", Nom: "Ada (old)"})

	c := startPicker(t, env, 3)

	got := c.Contacts()
	if diff := cmp.Diff([]string{"u2", "u3", "u4"}, profileIDs(got)); diff != "" {
		t.Errorf("contacts mismatch (-want +got):\n%s", diff)
	}
	if got[0].Nom != "Bob" {
		t.Errorf("Expected first occurrence to win, got %q", got[0].Nom)
	}
}

func TestContactPickerSelection(t *testing.T) {
	env := newTestEnv(t)
	seedContacts(t, env)
	c := startPicker(t, env, 3)

	if sel, err := c.Toggle("u3"); err != nil || !sel {
		t.Fatalf("Toggle(u3) = %v, %v", sel, err)
	}
	if sel, err := c.Toggle("u2"); err != nil || !sel {
		t.Fatalf("Toggle(u2) = %v, %v", sel, err)
	}
	if _, err := c.Toggle("u1"); !errors.Is(err, ErrUnknownContact) {
		t.Errorf("Expected ErrUnknownContact for self, got %v", err)
	}
	if diff := cmp.Diff([]string{"u3", "u2"}, profileIDs(c.Selected())); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}

	t.Run("selection survives refresh", func(t *testing.T) {
		env.set(t, models.CollectionContacts, "u2", models.Profile{ID: "u2", Nom: "Bobby", Telephone: "0602"})
		waitFor(t, c.Changes(), func() bool {
			for _, p := range c.Contacts() {
				if p.ID == "u2" {
					return p.Nom == "Bobby"
				}
			}
			return false
		})
		if !c.IsSelected("u2") {
			t.Error("Expected u2 to stay selected after refresh")
		}
		if sel := c.Selected(); len(sel) != 2 || sel[1].Nom != "Bobby" {
			t.Errorf("Expected refreshed profile in selection, got %+v", sel)
		}
	})

	t.Run("removed contacts leave the selection", func(t *testing.T) {
		if err := env.hub.Set(context.Background(), models.CollectionContacts, "u3", "gone"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		waitFor(t, c.Changes(), func() bool { return len(c.Contacts()) == 2 })
		if c.IsSelected("u3") {
			t.Error("Expected u3 to be pruned from the selection")
		}
		if diff := cmp.Diff([]string{"u2"}, profileIDs(c.Selected())); diff != "" {
			t.Errorf("selection mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("toggle again deselects", func(t *testing.T) {
		if sel, err := c.Toggle("u2"); err != nil || sel {
			t.Fatalf("Toggle(u2) = %v, %v", sel, err)
		}
		if len(c.Selected()) != 0 {
			t.Errorf("Expected empty selection, got %v", profileIDs(c.Selected()))
		}
	})
}

func TestContactPickerCreateGroup(t *testing.T) {
	env := newTestEnv(t)
	seedContacts(t, env)
	env.set(t, models.CollectionGroups, "existing", models.Group{ID: "existing", Name: "Old", Members: []string{"u9"}})
	c := startPicker(t, env, 3)

	c.Toggle("u2")
	c.Toggle("u3")
	c.SetGroupName("  Weekend  ")

	key, err := c.CreateGroup(context.Background())
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if key == "" || key == "existing" {
		t.Fatalf("Expected a fresh key, got %q", key)
	}

	got, ok := env.record(t, models.CollectionGroups, key)
	if !ok {
		t.Fatalf("Expected Groups/%s to exist", key)
	}
	want := map[string]any{"id": key, "name": "Weekend", "members": []any{"u1", "u2", "u3"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("group mismatch (-want +got):\n%s", diff)
	}
	if n := env.count(t, models.CollectionGroups); n != 2 {
		t.Errorf("Expected 2 groups, got %d", n)
	}

	if c.GroupName() != "" {
		t.Errorf("Expected name cleared, got %q", c.GroupName())
	}
	if len(c.Selected()) != 0 {
		t.Errorf("Expected selection cleared, got %v", profileIDs(c.Selected()))
	}

	t.Run("keys are distinct", func(t *testing.T) {
		c.SetGroupName("Again")
		again, err := c.CreateGroup(context.Background())
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		if again == key {
			t.Errorf("Expected distinct keys, got %q twice", key)
		}
		got, _ := env.record(t, models.CollectionGroups, again)
		if diff := cmp.Diff([]any{"u1"}, got["members"]); diff != "" {
			t.Errorf("members mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestContactPickerCreateGroupBlankName(t *testing.T) {
	env := newTestEnv(t)
	seedContacts(t, env)
	c := startPicker(t, env, 3)
	c.Toggle("u2")

	for _, name := range []string{"", "   ", "\t\n"} {
		c.SetGroupName(name)
		if _, err := c.CreateGroup(context.Background()); !errors.Is(err, ErrEmptyGroupName) {
			t.Errorf("CreateGroup(%q): expected ErrEmptyGroupName, got %v", name, err)
		}
	}
	if n := env.count(t, models.CollectionGroups); n != 0 {
		t.Errorf("Expected no write, found %d groups", n)
	}
	if diff := cmp.Diff([]string{"u2"}, profileIDs(c.Selected())); diff != "" {
		t.Errorf("selection changed (-want +got):\n%s", diff)
	}
}

func TestContactPickerCreateGroupFailure(t *testing.T) {
	env := newTestEnv(t)
	seedContacts(t, env)
	env.deps.Store = &failingStore{Store: env.hub, setErr: errors.New("permission denied")}
	c := startPicker(t, env, 3)

	c.Toggle("u2")
	c.SetGroupName("Weekend")

	if _, err := c.CreateGroup(context.Background()); err == nil {
		t.Fatal("Expected CreateGroup to fail")
	}
	if c.GroupName() != "Weekend" {
		t.Errorf("Expected name kept for retry, got %q", c.GroupName())
	}
	if !c.IsSelected("u2") {
		t.Error("Expected selection kept for retry")
	}
	if env.notifier.Count() != 1 {
		t.Errorf("Expected one notification, got %d", env.notifier.Count())
	}
	if n := env.count(t, models.CollectionGroups); n != 0 {
		t.Errorf("Expected no group written, got %d", n)
	}
}

func TestContactPickerHandOffs(t *testing.T) {
	env := newTestEnv(t)
	seedContacts(t, env)
	c := startPicker(t, env, 3)

	t.Run("chat", func(t *testing.T) {
		if err := c.Chat("", "Bob"); !errors.Is(err, ErrMissingRouteParam) {
			t.Errorf("Expected ErrMissingRouteParam, got %v", err)
		}
		if err := c.Chat("u2", ""); !errors.Is(err, ErrMissingRouteParam) {
			t.Errorf("Expected ErrMissingRouteParam, got %v", err)
		}
		if err := c.Chat("u2", "Bob"); err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		want := []Route{DirectChatRoute{CurrentID: "u1", SecondID: "u2", Nom: "Bob"}}
		if diff := cmp.Diff(want, env.navigator.Routes()); diff != "" {
			t.Errorf("routes mismatch (-want +got):\n%s", diff)
		}
	})

	receive := func(t *testing.T) string {
		t.Helper()
		select {
		case uri := <-env.launcher.uris:
			return uri
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for launcher")
		}
		return ""
	}

	t.Run("call", func(t *testing.T) {
		if err := c.Call(context.Background(), "u2"); err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if got := receive(t); got != "tel:0602" {
			t.Errorf("Expected tel:0602, got %q", got)
		}
	})

	t.Run("sms", func(t *testing.T) {
		if err := c.SMS(context.Background(), "u3"); err != nil {
			t.Fatalf("SMS failed: %v", err)
		}
		if got := receive(t); got != "sms:+33%20603" {
			t.Errorf("Expected sms:+33%%20603, got %q", got)
		}
	})

	t.Run("no telephone", func(t *testing.T) {
		if err := c.Call(context.Background(), "u4"); err == nil {
			t.Error("Expected error for contact without telephone")
		}
		if err := c.SMS(context.Background(), "nobody"); !errors.Is(err, ErrUnknownContact) {
			t.Errorf("Expected ErrUnknownContact, got %v", err)
		}
	})
}

func TestContactPickerLateCompletion(t *testing.T) {
	env := newTestEnv(t)
	seedContacts(t, env)
	c := startPicker(t, env, 3)
	c.Toggle("u2")
	c.SetGroupName("Weekend")
	c.Close()

	if _, err := c.CreateGroup(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if _, err := c.Toggle("u3"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if n := env.count(t, models.CollectionGroups); n != 0 {
		t.Errorf("Expected no write after Close, got %d groups", n)
	}
}
