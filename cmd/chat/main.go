package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmynk/groupchat/internal/client"
	"github.com/mmynk/groupchat/internal/config"
	"github.com/mmynk/groupchat/internal/device"
	"github.com/mmynk/groupchat/internal/notify"
	"github.com/mmynk/groupchat/internal/tui"
	"github.com/mmynk/groupchat/pkg/logging"
)

const maxReconnectDelay = 30 * time.Second

func main() {
	configFlag := flag.String("config", "", "path to config file")
	registerFlag := flag.Bool("register", false, "create an account with the configured email and password, then start")
	nameFlag := flag.String("name", "", "display name for -register")
	telephoneFlag := flag.String("telephone", "", "telephone number for -register")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logFile, err := logging.SetupFileWithLevel(cfg.LogFile, logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	slog.Info("Config loaded", "server_url", cfg.ServerURL, "config", config.Path(*configFlag))

	// No client timeout: subscriptions are long-lived streams.
	httpClient := &http.Client{}
	session := client.NewSession(httpClient, cfg.ServerURL)
	tree := client.NewTree(httpClient, cfg.ServerURL, session,
		client.WithReconnectDelay(cfg.MinReconnectDelay(), maxReconnectDelay),
	)

	if *registerFlag {
		if err := register(session, cfg, *nameFlag, *telephoneFlag); err != nil {
			fmt.Fprintf(os.Stderr, "register: %v\n", err)
			os.Exit(1)
		}
	}

	app := tui.New(tui.Options{
		Auth:     session,
		Store:    tree,
		Launcher: device.NewLauncher(cfg.Device.Launcher),
		Picker:   device.NewDialogPicker(cfg.Device.Picker),
		Encoder:  device.NewEncoder(&http.Client{Timeout: 30 * time.Second}, cfg.Device.MaxImageBytes),
		Notifications: notify.Config{
			Desktop:    cfg.DesktopNotifications(),
			WebhookURL: cfg.Notifications.WebhookURL,
		},
		Email:    cfg.Email,
		Password: cfg.Password,
	})
	defer app.Close()

	slog.Info("Starting TUI")
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func register(session *client.Session, cfg config.Config, name, telephone string) error {
	if cfg.Email == "" || cfg.Password == "" {
		return fmt.Errorf("email and password are required (config file, GROUPCHAT_EMAIL, GROUPCHAT_PASSWORD)")
	}
	if name == "" {
		return fmt.Errorf("-name is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return session.Register(ctx, cfg.Email, cfg.Password, name, telephone)
}
