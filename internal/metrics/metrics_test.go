package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/groupchat/internal/realtime"
)

func TestObserver(t *testing.T) {
	m := New()

	m.ObserveWrite("Groups", "set", nil)
	m.ObserveWrite("Groups", "set", nil)
	m.ObserveWrite("Groups", "update", errors.New("boom"))
	m.SubscriptionOpened("Groups")
	m.SubscriptionOpened("Groups")
	m.SubscriptionClosed("Groups")
	m.ObserveFanout("Groups", 3)

	if got := testutil.ToFloat64(m.writes.WithLabelValues("Groups", "set", "ok")); got != 2 {
		t.Errorf("Expected 2 ok sets, got %v", got)
	}
	if got := testutil.ToFloat64(m.writes.WithLabelValues("Groups", "update", "error")); got != 1 {
		t.Errorf("Expected 1 failed update, got %v", got)
	}
	if got := testutil.ToFloat64(m.subscriptions.WithLabelValues("Groups")); got != 1 {
		t.Errorf("Expected 1 live subscription, got %v", got)
	}
	if got := testutil.ToFloat64(m.deliveries.WithLabelValues("Groups")); got != 3 {
		t.Errorf("Expected 3 deliveries, got %v", got)
	}
}

func TestHubReportsToMetrics(t *testing.T) {
	ctx := context.Background()
	m := New()
	hub := realtime.NewHub(realtime.NewMemory(), realtime.WithObserver(m))

	sub, err := hub.Subscribe(ctx, "Users", func(realtime.Snapshot) {})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := hub.Set(ctx, "Users", "u1", map[string]string{"nom": "Ada"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	sub.Release()

	if got := testutil.ToFloat64(m.writes.WithLabelValues("Users", "set", "ok")); got != 1 {
		t.Errorf("Expected 1 set, got %v", got)
	}
	if got := testutil.ToFloat64(m.subscriptions.WithLabelValues("Users")); got != 0 {
		t.Errorf("Expected 0 live subscriptions, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "groupchat_tree_writes_total") {
		t.Errorf("Expected exposition to include writes counter, got:\n%s", body)
	}
}

func TestObservedStore(t *testing.T) {
	ctx := context.Background()
	m := New()
	store := m.Observe(realtime.NewHub(realtime.NewMemory()))

	delivered := make(chan realtime.Snapshot, 8)
	sub, err := store.Subscribe(ctx, "Groups", func(s realtime.Snapshot) { delivered <- s })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if got := testutil.ToFloat64(m.subscriptions.WithLabelValues("Groups")); got != 1 {
		t.Errorf("Expected 1 live subscription, got %v", got)
	}

	if err := store.Set(ctx, "Groups", "g1", map[string]string{"name": "Lunch"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Update(ctx, "Groups", "g1", map[string]any{"bad.field": 1}); err == nil {
		t.Fatal("Expected Update with an invalid field to fail")
	}
	for i := 0; i < 2; i++ {
		select {
		case <-delivered:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for snapshot %d", i+1)
		}
	}

	sub.Release()
	sub.Release()

	if got := testutil.ToFloat64(m.writes.WithLabelValues("Groups", "set", "ok")); got != 1 {
		t.Errorf("Expected 1 set, got %v", got)
	}
	if got := testutil.ToFloat64(m.writes.WithLabelValues("Groups", "update", "error")); got != 1 {
		t.Errorf("Expected 1 failed update, got %v", got)
	}
	if got := testutil.ToFloat64(m.deliveries.WithLabelValues("Groups")); got < 2 {
		t.Errorf("Expected at least 2 deliveries, got %v", got)
	}
	if got := testutil.ToFloat64(m.subscriptions.WithLabelValues("Groups")); got != 0 {
		t.Errorf("Expected 0 live subscriptions, got %v", got)
	}
}

func TestObservedStoreContextRelease(t *testing.T) {
	m := New()
	store := m.Observe(realtime.NewHub(realtime.NewMemory()))

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := store.Subscribe(ctx, "Users", func(realtime.Snapshot) {}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(m.subscriptions.WithLabelValues("Users")) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected subscription gauge to drop after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
