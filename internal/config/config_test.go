package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPath(t *testing.T) {
	t.Run("flag takes priority", func(t *testing.T) {
		got := Path("/my/flag/path.toml")
		if got != "/my/flag/path.toml" {
			t.Errorf("Path with flag = %q, want %q", got, "/my/flag/path.toml")
		}
	})

	t.Run("env var when no flag", func(t *testing.T) {
		t.Setenv("GROUPCHAT_CONFIG", "/env/path.toml")
		got := Path("")
		if got != "/env/path.toml" {
			t.Errorf("Path with env = %q, want %q", got, "/env/path.toml")
		}
	})

	t.Run("default when no flag or env", func(t *testing.T) {
		t.Setenv("GROUPCHAT_CONFIG", "")
		home, err := os.UserHomeDir()
		if err != nil {
			t.Fatalf("os.UserHomeDir() failed: %v", err)
		}
		want := filepath.Join(home, ".config", "groupchat", "config.toml")
		if got := Path(""); got != want {
			t.Errorf("Path default = %q, want %q", got, want)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		t.Setenv("GROUPCHAT_PASSWORD", "from-env")
		t.Setenv("GROUPCHAT_EMAIL", "")
		cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.toml"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ServerURL != defaultServerURL {
			t.Errorf("ServerURL = %q, want %q", cfg.ServerURL, defaultServerURL)
		}
		if cfg.Password != "from-env" {
			t.Errorf("Password = %q, want value from GROUPCHAT_PASSWORD", cfg.Password)
		}
		if !cfg.DesktopNotifications() {
			t.Error("expected desktop notifications by default")
		}
		if cfg.MinReconnectDelay() != 500*time.Millisecond {
			t.Errorf("MinReconnectDelay = %v, want 500ms", cfg.MinReconnectDelay())
		}
	})

	t.Run("valid TOML parses", func(t *testing.T) {
		t.Setenv("GROUPCHAT_PASSWORD", "from-env")
		cfgFile := filepath.Join(t.TempDir(), "config.toml")
		content := `
server_url = "https://chat.example.com"
email = "ada@example.com"
password = "in-file"
reconnect_delay = "2s"

[notifications]
desktop = false
webhook_url = "https://hooks.example.com/x"

[device]
launcher = "xdg-open"
max_image_bytes = 1024
`
		if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(cfgFile)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ServerURL != "https://chat.example.com" {
			t.Errorf("ServerURL = %q", cfg.ServerURL)
		}
		if cfg.Password != "in-file" {
			t.Errorf("Password = %q, want file value to win", cfg.Password)
		}
		if cfg.DesktopNotifications() {
			t.Error("expected desktop notifications disabled")
		}
		if cfg.Notifications.WebhookURL != "https://hooks.example.com/x" {
			t.Errorf("WebhookURL = %q", cfg.Notifications.WebhookURL)
		}
		if cfg.Device.Launcher != "xdg-open" || cfg.Device.MaxImageBytes != 1024 {
			t.Errorf("Device = %+v", cfg.Device)
		}
		if cfg.MinReconnectDelay() != 2*time.Second {
			t.Errorf("MinReconnectDelay = %v, want 2s", cfg.MinReconnectDelay())
		}
		if cfg.LogFile != filepath.Join(filepath.Dir(cfgFile), "groupchat.log") {
			t.Errorf("LogFile = %q", cfg.LogFile)
		}
	})

	t.Run("invalid TOML fails", func(t *testing.T) {
		cfgFile := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(cfgFile, []byte("server_url = ["), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(cfgFile); err == nil {
			t.Error("expected error for invalid TOML")
		}
	})
}
