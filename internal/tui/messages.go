package tui

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmynk/groupchat/internal/screens"
)

const actionTimeout = 30 * time.Second

// statusMsg is a notification raised by a controller.
type statusMsg struct {
	title   string
	message string
}

// routeMsg is a navigation hand-off raised by a controller.
type routeMsg struct{ route screens.Route }

// changedMsg reports that a controller of live has new state.
type changedMsg struct {
	live *liveScreens
	tab  tab
}

// signInMsg is the outcome of a sign-in attempt.
type signInMsg struct{ err error }

// actionMsg is the outcome of a background controller call.
type actionMsg struct {
	action string
	err    error
}

// statusFeed fans controller notifications into the program.
type statusFeed chan statusMsg

func (f statusFeed) Notify(title, message string) {
	select {
	case f <- statusMsg{title: title, message: message}:
	default:
		slog.Warn("Dropping status message", "title", title)
	}
}

// routeFeed fans navigation hand-offs into the program.
type routeFeed chan screens.Route

func (f routeFeed) Navigate(route screens.Route) {
	select {
	case f <- route:
	default:
		slog.Warn("Dropping navigation", "route", route.RouteName())
	}
}

func waitForStatus(feed statusFeed) tea.Cmd {
	return func() tea.Msg {
		return <-feed
	}
}

func waitForRoute(feed routeFeed) tea.Cmd {
	return func() tea.Msg {
		return routeMsg{route: <-feed}
	}
}

// waitForChanges blocks until the controller signals a change, or returns
// nil once live is torn down.
func waitForChanges(live *liveScreens, t tab, changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-changes:
			return changedMsg{live: live, tab: t}
		case <-live.done:
			return nil
		}
	}
}

// runAction runs fn off the update loop with a bounded context.
func runAction(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionMsg{action: action, err: fn(ctx)}
	}
}
