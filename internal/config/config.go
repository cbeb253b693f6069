// Package config loads the terminal client's TOML configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultServerURL     = "http://localhost:8080"
	defaultMaxImageBytes = 5 << 20
)

type NotificationConfig struct {
	Desktop    *bool  `toml:"desktop"` // nil = default (true)
	WebhookURL string `toml:"webhook_url"`
}

type DeviceConfig struct {
	// Launcher overrides the program opening tel: and sms: URIs.
	Launcher string `toml:"launcher"`
	// Picker overrides the file dialog program used to choose a picture.
	Picker        string `toml:"picker"`
	MaxImageBytes int64  `toml:"max_image_bytes"`
}

type Config struct {
	ServerURL string `toml:"server_url"`
	Email     string `toml:"email"`
	// Password is read from GROUPCHAT_PASSWORD when empty.
	Password       string             `toml:"password"`
	LogFile        string             `toml:"log_file"`
	LogLevel       string             `toml:"log_level"`
	ReconnectDelay string             `toml:"reconnect_delay"`
	Notifications  NotificationConfig `toml:"notifications"`
	Device         DeviceConfig       `toml:"device"`
}

// DesktopNotifications returns whether desktop notifications are enabled.
func (c Config) DesktopNotifications() bool {
	if c.Notifications.Desktop == nil {
		return true // enabled by default
	}
	return *c.Notifications.Desktop
}

// MinReconnectDelay parses ReconnectDelay, falling back to half a second.
func (c Config) MinReconnectDelay() time.Duration {
	if d, err := time.ParseDuration(c.ReconnectDelay); err == nil && d > 0 {
		return d
	}
	return 500 * time.Millisecond
}

func defaultConfig() Config {
	return Config{
		ServerURL: defaultServerURL,
		LogLevel:  "info",
		Device: DeviceConfig{
			MaxImageBytes: defaultMaxImageBytes,
		},
	}
}

// Path resolves the config file location: the flag, then $GROUPCHAT_CONFIG,
// then ~/.config/groupchat/config.toml.
func Path(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv("GROUPCHAT_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "groupchat", "config.toml")
}

// Load reads the config file. A missing file yields the defaults.
func Load(flagPath string) (Config, error) {
	cfg := defaultConfig()

	path := Path(flagPath)
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if err == nil {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.ServerURL == "" {
		cfg.ServerURL = defaultServerURL
	}
	if cfg.Device.MaxImageBytes <= 0 {
		cfg.Device.MaxImageBytes = defaultMaxImageBytes
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(filepath.Dir(path), "groupchat.log")
	}

	return applyEnv(cfg), nil
}

func applyEnv(cfg Config) Config {
	if cfg.Password == "" {
		cfg.Password = os.Getenv("GROUPCHAT_PASSWORD")
	}
	if cfg.Email == "" {
		cfg.Email = os.Getenv("GROUPCHAT_EMAIL")
	}
	return cfg
}
