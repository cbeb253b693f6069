// Package device provides the desktop stand-ins for the phone's URL-scheme
// launcher, image picker and image fetch-and-encode.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

var (
	// ErrPickCanceled is returned when the user dismisses the image picker.
	ErrPickCanceled = errors.New("image pick canceled")
	// ErrNoPicker is returned when no dialog program is installed.
	ErrNoPicker = errors.New("no file dialog program found")
	// ErrNoLauncher is returned when no URI opener is installed.
	ErrNoLauncher = errors.New("no URI opener found")
)

// Launcher opens URIs with an external program such as xdg-open.
type Launcher struct {
	command []string
}

// NewLauncher returns a launcher running command with the URI appended.
// An empty command picks the platform opener.
func NewLauncher(command string) *Launcher {
	return &Launcher{command: strings.Fields(command)}
}

// Open runs the opener for uri and waits for it to exit.
func (l *Launcher) Open(ctx context.Context, uri string) error {
	argv := l.command
	if len(argv) == 0 {
		var err error
		argv, err = platformOpener()
		if err != nil {
			return err
		}
	}

	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], uri)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to open %s: %w: %s", uri, err, strings.TrimSpace(string(out)))
	}
	slog.Debug("Opened URI", "uri", uri, "command", argv[0])
	return nil
}

func platformOpener() ([]string, error) {
	switch runtime.GOOS {
	case "darwin":
		return []string{"open"}, nil
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler"}, nil
	}
	for _, name := range []string{"xdg-open", "gio"} {
		if path, err := exec.LookPath(name); err == nil {
			if name == "gio" {
				return []string{path, "open"}, nil
			}
			return []string{path}, nil
		}
	}
	return nil, ErrNoLauncher
}

// DialogPicker asks for an image through a file dialog program.
type DialogPicker struct {
	command []string
}

// NewDialogPicker returns a picker running command, which must print the
// chosen path and exit non-zero when cancelled. An empty command tries
// zenity, then kdialog.
func NewDialogPicker(command string) *DialogPicker {
	return &DialogPicker{command: strings.Fields(command)}
}

// PickImage shows the dialog and returns the chosen file path.
func (p *DialogPicker) PickImage(ctx context.Context) (string, error) {
	argv := p.command
	if len(argv) == 0 {
		var err error
		argv, err = dialogCommand()
		if err != nil {
			return "", err
		}
	}

	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return "", ErrPickCanceled
	}
	if err != nil {
		return "", fmt.Errorf("failed to run %s: %w", argv[0], err)
	}

	path := strings.TrimSpace(string(out))
	if path == "" {
		return "", ErrPickCanceled
	}
	return path, nil
}

func dialogCommand() ([]string, error) {
	if path, err := exec.LookPath("zenity"); err == nil {
		return []string{path, "--file-selection", "--title=Choose a picture",
			"--file-filter=Images | *.png *.jpg *.jpeg *.gif *.webp *.bmp"}, nil
	}
	if path, err := exec.LookPath("kdialog"); err == nil {
		return []string{path, "--getopenfilename", ".", "image/png image/jpeg image/gif image/webp image/bmp"}, nil
	}
	return nil, ErrNoPicker
}
