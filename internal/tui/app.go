// Package tui is the terminal front end: a sign-in form, then the group
// list, the contact picker and the profile editor as tabs.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmynk/groupchat/internal/models"
	"github.com/mmynk/groupchat/internal/notify"
	"github.com/mmynk/groupchat/internal/realtime"
	"github.com/mmynk/groupchat/internal/screens"
)

type tab int

const (
	tabGroups tab = iota
	tabContacts
	tabProfile
	tabCount
)

var tabNames = [...]string{
	tabGroups:   "Groups",
	tabContacts: "Contacts",
	tabProfile:  "Profile",
}

// Auth signs the user in and out.
type Auth interface {
	screens.SessionProvider
	SignIn(ctx context.Context, email, password string) error
}

// Options are the collaborators of the app.
type Options struct {
	Auth     Auth
	Store    realtime.Store
	Launcher screens.Launcher
	Picker   screens.ImagePicker
	Encoder  screens.ImageEncoder

	// Notifications selects where notifications go besides the status bar.
	Notifications notify.Config

	// Email prefills the sign-in form. With Password set too, Init signs
	// in without prompting.
	Email    string
	Password string
}

// liveScreens are the controllers of one signed-in session.
type liveScreens struct {
	session  models.Session
	groups   *screens.GroupList
	contacts *screens.ContactPicker
	profile  *screens.ProfileEditor
	cancel   context.CancelFunc
	done     chan struct{}
}

func (l *liveScreens) close() {
	l.groups.Close()
	l.contacts.Close()
	l.profile.Close()
	l.cancel()
	close(l.done)
}

// Model is the bubbletea model of the app.
type Model struct {
	opts     Options
	notifier *notify.Dispatcher
	statuses statusFeed
	routes   routeFeed

	width  int
	height int

	status    string
	statusErr bool

	signIn    signInForm
	signingIn bool

	live *liveScreens
	tab  tab

	groupCursor int

	contactCursor int
	groupName     textinput.Model
	naming        bool

	fieldCursor int
	fields      []textinput.Model
	editing     bool
}

// New creates the app. Run it with tea.NewProgram and call Close when the
// program returns.
func New(opts Options) *Model {
	m := &Model{
		opts:     opts,
		statuses: make(statusFeed, 16),
		routes:   make(routeFeed, 4),
		signIn:   newSignInForm(opts.Email),
	}
	m.notifier = notify.NewDispatcher(opts.Notifications, m.statuses.Notify)

	m.groupName = textinput.New()
	m.groupName.Placeholder = "Group name"
	m.groupName.CharLimit = 80

	m.fields = make([]textinput.Model, len(screens.Fields))
	for i, f := range screens.Fields {
		ti := textinput.New()
		ti.Placeholder = f.String()
		ti.CharLimit = 120
		m.fields[i] = ti
	}
	return m
}

// Init starts listening for notifications and navigation, and resumes or
// starts a session.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		waitForStatus(m.statuses),
		waitForRoute(m.routes),
	}
	if session, ok := m.opts.Auth.CurrentSession(); ok {
		cmds = append(cmds, m.startScreens(session))
	} else if m.opts.Email != "" && m.opts.Password != "" {
		m.signingIn = true
		cmds = append(cmds, signInCmd(m.opts.Auth, m.opts.Email, m.opts.Password))
	}
	return tea.Batch(cmds...)
}

// Close tears down the live controllers.
func (m *Model) Close() {
	m.teardown()
}

// startScreens creates and starts the controllers of session.
func (m *Model) startScreens(session models.Session) tea.Cmd {
	m.teardown()

	ctx, cancel := context.WithCancel(context.Background())
	deps := screens.Deps{
		Store:     m.opts.Store,
		Session:   m.opts.Auth,
		Navigator: m.routes,
		Notifier:  m.notifier,
		Launcher:  m.opts.Launcher,
		Picker:    m.opts.Picker,
		Encoder:   m.opts.Encoder,
	}
	live := &liveScreens{
		session:  session,
		groups:   screens.NewGroupList(deps, session.UserID),
		contacts: screens.NewContactPicker(deps, session.UserID),
		profile:  screens.NewProfileEditor(deps, session.UserID),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	err := errors.Join(
		live.groups.Start(ctx),
		live.contacts.Start(ctx),
		live.profile.Start(ctx),
	)
	if err != nil {
		slog.Error("Failed to start screens", "user_id", session.UserID, "error", err)
		live.close()
		m.setStatus("Could not load your data: "+err.Error(), true)
		return nil
	}

	slog.Info("Session started", "user_id", session.UserID)
	m.live = live
	m.tab = tabGroups
	m.groupCursor, m.contactCursor, m.fieldCursor = 0, 0, 0
	m.naming, m.editing = false, false
	m.groupName.Blur()
	m.groupName.SetValue("")
	m.refreshProfile()

	return tea.Batch(
		waitForChanges(live, tabGroups, live.groups.Changes()),
		waitForChanges(live, tabContacts, live.contacts.Changes()),
		waitForChanges(live, tabProfile, live.profile.Changes()),
	)
}

func (m *Model) teardown() {
	if m.live == nil {
		return
	}
	m.live.close()
	m.live = nil
	m.naming, m.editing = false, false
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

// Update handles a message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case statusMsg:
		m.setStatus(msg.title+": "+msg.message, false)
		return m, waitForStatus(m.statuses)
	case routeMsg:
		return m, tea.Batch(m.handleRoute(msg.route), waitForRoute(m.routes))
	case changedMsg:
		return m.handleChanged(msg)
	case signInMsg:
		return m.handleSignIn(msg)
	case actionMsg:
		return m.handleAction(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m.updateFocused(msg)
}

func (m *Model) handleRoute(route screens.Route) tea.Cmd {
	slog.Info("Navigation", "route", route.RouteName())
	switch r := route.(type) {
	case screens.AuthRoute:
		m.teardown()
		m.signIn = newSignInForm(m.opts.Email)
		m.setStatus("Signed out", false)
		return textinput.Blink
	case screens.GroupChatRoute:
		m.setStatus(fmt.Sprintf("Opening group %s", r.GroupName), false)
	case screens.DirectChatRoute:
		m.setStatus(fmt.Sprintf("Opening chat with %s", r.Nom), false)
	}
	return nil
}

func (m *Model) handleChanged(msg changedMsg) (tea.Model, tea.Cmd) {
	if msg.live != m.live {
		return m, nil
	}
	var changes <-chan struct{}
	switch msg.tab {
	case tabGroups:
		m.refreshGroups()
		changes = m.live.groups.Changes()
	case tabContacts:
		m.refreshContacts()
		changes = m.live.contacts.Changes()
	case tabProfile:
		m.refreshProfile()
		changes = m.live.profile.Changes()
	}
	return m, waitForChanges(msg.live, msg.tab, changes)
}

func (m *Model) handleSignIn(msg signInMsg) (tea.Model, tea.Cmd) {
	m.signingIn = false
	if msg.err != nil {
		m.signIn.password.SetValue("")
		m.setStatus("Sign-in failed: "+msg.err.Error(), true)
		return m, nil
	}
	session, ok := m.opts.Auth.CurrentSession()
	if !ok {
		m.setStatus("Sign-in failed: no session", true)
		return m, nil
	}
	m.setStatus("Signed in as "+session.Email, false)
	return m, m.startScreens(session)
}

func (m *Model) handleAction(msg actionMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		slog.Debug("Action failed", "action", msg.action, "error", msg.err)
		m.setStatus(msg.action+": "+msg.err.Error(), true)
		return m, nil
	}
	switch msg.action {
	case actionCreateGroup:
		m.setStatus("Group created", false)
		m.refreshContacts()
	case actionPickImage:
		m.refreshProfile()
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		m.teardown()
		return m, tea.Quit
	}
	if m.live == nil {
		return m.updateSignIn(msg)
	}
	if m.naming {
		return m.updateNaming(msg)
	}
	if m.editing {
		return m.updateEditing(msg)
	}

	switch {
	case key.Matches(msg, keys.NextTab):
		m.tab = (m.tab + 1) % tabCount
		return m, nil
	case key.Matches(msg, keys.PrevTab):
		m.tab = (m.tab + tabCount - 1) % tabCount
		return m, nil
	}

	switch m.tab {
	case tabGroups:
		return m.updateGroups(msg)
	case tabContacts:
		return m.updateContacts(msg)
	default:
		return m.updateProfile(msg)
	}
}

// updateFocused passes non-key messages, such as cursor blinks, to the
// focused input.
func (m *Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.live == nil:
		cmd = m.signIn.update(msg)
	case m.naming:
		m.groupName, cmd = m.groupName.Update(msg)
	case m.editing:
		m.fields[m.fieldCursor], cmd = m.fields[m.fieldCursor].Update(msg)
	}
	return m, cmd
}

// View renders the app.
func (m *Model) View() string {
	var body string
	if m.live == nil {
		body = m.viewSignIn()
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left,
			m.viewHeader(),
			"",
			m.viewTab(),
			"",
			mutedStyle.Render(m.help()),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.viewStatusBar())
}

func (m *Model) viewHeader() string {
	tabs := make([]string, 0, len(tabNames)+2)
	tabs = append(tabs, titleStyle.Render("groupchat"))
	for i, name := range tabNames {
		if tab(i) == m.tab {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, tabStyle.Render(name))
		}
	}
	tabs = append(tabs, mutedStyle.Render(m.live.session.Email))
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) viewTab() string {
	switch m.tab {
	case tabGroups:
		return m.viewGroups()
	case tabContacts:
		return m.viewContacts()
	default:
		return m.viewProfile()
	}
}

func (m *Model) help() string {
	var parts []string
	switch {
	case m.naming:
		parts = []string{"enter create", "esc done"}
	case m.editing:
		parts = []string{"enter keep", "esc revert"}
	case m.tab == tabGroups:
		parts = []string{"↑/↓ move", "enter open"}
	case m.tab == tabContacts:
		parts = []string{"↑/↓ move", "space select", "n name", "ctrl+n create", "m chat", "c call", "s sms"}
	default:
		parts = []string{"↑/↓ move", "enter edit", "ctrl+o image", "ctrl+s save", "ctrl+x sign out"}
	}
	if !m.naming && !m.editing {
		parts = append(parts, "tab switch", "ctrl+c quit")
	}
	return strings.Join(parts, " · ")
}

func (m *Model) viewStatusBar() string {
	style := statusBarStyle
	if m.statusErr {
		style = statusErrStyle
	}
	if m.width > 0 {
		style = style.Width(m.width)
	}
	return style.Render(m.status)
}

// clamp keeps a cursor within n rows.
func clamp(cursor, n int) int {
	if cursor >= n {
		cursor = n - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}
