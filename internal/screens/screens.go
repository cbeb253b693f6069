// Package screens holds the controllers behind the group list, the contact
// picker and the profile editor.
//
// A controller owns its live subscriptions and the state derived from them.
// Every snapshot fully replaces derived state. Controllers are safe for
// concurrent use; renderers wait on Changes and then read state through the
// accessors. After Close no snapshot or async completion touches state.
package screens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mmynk/groupchat/internal/models"
	"github.com/mmynk/groupchat/internal/realtime"
)

var (
	// ErrMissingRouteParam is returned when a navigation hand-off lacks an
	// identifier or a name.
	ErrMissingRouteParam = errors.New("missing navigation parameter")
	// ErrEmptyGroupName is returned when a group is created without a name.
	ErrEmptyGroupName = errors.New("group name is required")
	// ErrNotSignedIn is returned by actions that need an authenticated session.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrClosed is returned by actions on a closed controller.
	ErrClosed = errors.New("screen closed")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("screen already started")
	// ErrUnknownContact is returned for actions on ids that are not listed.
	ErrUnknownContact = errors.New("unknown contact")
)

// ValidationError lists the required fields that were left empty.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// SessionProvider is the auth collaborator.
type SessionProvider interface {
	CurrentSession() (models.Session, bool)
	SignOut(ctx context.Context) error
}

// Route is a navigation target handed to the Navigator.
type Route interface {
	RouteName() string
}

// GroupChatRoute opens a group conversation.
type GroupChatRoute struct {
	GroupID   string
	GroupName string
	CurrentID string
}

func (GroupChatRoute) RouteName() string { return "GroupChat" }

// DirectChatRoute opens a one-to-one conversation.
type DirectChatRoute struct {
	CurrentID string
	SecondID  string
	Nom       string
}

func (DirectChatRoute) RouteName() string { return "Chat" }

// AuthRoute is the unauthenticated entry screen.
type AuthRoute struct{}

func (AuthRoute) RouteName() string { return "Auth" }

// Navigator performs navigation hand-offs.
type Navigator interface {
	Navigate(route Route)
}

// Notifier shows a user-visible message.
type Notifier interface {
	Notify(title, message string)
}

// Launcher opens a URI with the device's handler for its scheme.
type Launcher interface {
	Open(ctx context.Context, uri string) error
}

// ImagePicker lets the user choose an image. It returns a local resource
// reference, or an error wrapping device.ErrPickCanceled.
type ImagePicker interface {
	PickImage(ctx context.Context) (string, error)
}

// ImageEncoder fetches a resource reference and returns its contents as
// plain base64.
type ImageEncoder interface {
	Encode(ctx context.Context, ref string) (string, error)
}

// Deps are the collaborators shared by every controller.
type Deps struct {
	Store     realtime.Store
	Session   SessionProvider
	Navigator Navigator
	Notifier  Notifier
	Launcher  Launcher
	Picker    ImagePicker
	Encoder   ImageEncoder
}

func (d Deps) notify(title, message string) {
	if d.Notifier != nil {
		d.Notifier.Notify(title, message)
	}
}

func (d Deps) navigate(route Route) {
	if d.Navigator != nil {
		d.Navigator.Navigate(route)
	}
}

// screen is the lifecycle shared by the controllers. mu guards the
// embedding controller's state as well.
type screen struct {
	mu      sync.Mutex
	started bool
	closed  bool
	subs    []realtime.Subscription
	changes chan struct{}
}

func newScreen() screen {
	return screen{changes: make(chan struct{}, 1)}
}

// Changes signals after state changed. Signals coalesce.
func (s *screen) Changes() <-chan struct{} {
	return s.changes
}

func (s *screen) changed() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// subscribe opens one subscription per collection. apply runs under mu
// and is skipped once the screen is closed. A subscription that stops for
// good is reported through deps' notifier while the screen is open.
func (s *screen) subscribe(ctx context.Context, deps Deps, apply map[string]func(realtime.Snapshot)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	var subs []realtime.Subscription
	for collection, fn := range apply {
		sub, err := deps.Store.Subscribe(ctx, collection, func(snap realtime.Snapshot) {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			fn(snap)
			s.mu.Unlock()
			s.changed()
		}, realtime.WithErrorHandler(func(err error) {
			if s.Closed() {
				return
			}
			slog.Error("Live updates stopped", "collection", collection, "error", err)
			deps.notify("Connection", "Live updates stopped: "+err.Error())
		}))
		if err != nil {
			for _, opened := range subs {
				opened.Release()
			}
			return fmt.Errorf("failed to subscribe to %s: %w", collection, err)
		}
		subs = append(subs, sub)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		for _, sub := range subs {
			sub.Release()
		}
		return ErrClosed
	}
	s.subs = subs
	s.mu.Unlock()
	return nil
}

// Close releases every subscription. It is idempotent.
func (s *screen) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Release()
	}
}

// Closed reports whether Close was called.
func (s *screen) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// live runs fn under mu unless the screen is closed and reports whether it
// ran.
func (s *screen) live(fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	fn()
	s.mu.Unlock()
	s.changed()
	return true
}
