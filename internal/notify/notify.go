// Package notify delivers user-visible messages raised by the screens.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gen2brain/beeep"
)

const (
	defaultTitle  = "groupchat"
	maxMessageLen = 800
)

// Config selects the channels a Dispatcher sends to.
type Config struct {
	Desktop    bool
	WebhookURL string
}

// Sink receives every message in-process, e.g. the TUI status line.
type Sink func(title, message string)

// Dispatcher sends notifications to the configured channels. The sink is
// called synchronously; desktop and webhook delivery run in the background.
type Dispatcher struct {
	cfg    Config
	sink   Sink
	client *http.Client

	// desktop is replaced in tests.
	desktop func(title, message string) error
}

// NewDispatcher creates a Dispatcher with sensible defaults.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	return &Dispatcher{
		cfg:  cfg,
		sink: sink,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		desktop: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// truncate cuts s to at most n bytes on a rune boundary and marks the cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// Notify shows message under title.
func (d *Dispatcher) Notify(title, message string) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}
	message = strings.TrimSpace(message)
	message = truncate(message, maxMessageLen)

	if d.sink != nil {
		d.sink(title, message)
	}

	if d.cfg.Desktop {
		go func() {
			if err := d.desktop(title, message); err != nil {
				slog.Debug("Desktop notification failed", "error", err)
			}
		}()
	}

	if d.cfg.WebhookURL != "" {
		go d.postWebhook(context.Background(), title, message)
	}
}

func (d *Dispatcher) postWebhook(ctx context.Context, title, message string) {
	body, err := json.Marshal(map[string]any{
		"title":     title,
		"message":   message,
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		slog.Debug("Webhook request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		slog.Debug("Webhook delivery failed", "error", err)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
