package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type signInForm struct {
	email    textinput.Model
	password textinput.Model
	focus    int
}

func newSignInForm(email string) signInForm {
	e := textinput.New()
	e.Placeholder = "email"
	e.CharLimit = 254
	e.SetValue(email)

	p := textinput.New()
	p.Placeholder = "password"
	p.EchoMode = textinput.EchoPassword
	p.EchoCharacter = '•'
	p.CharLimit = 128

	f := signInForm{email: e, password: p}
	if email == "" {
		f.email.Focus()
	} else {
		f.focus = 1
		f.password.Focus()
	}
	return f
}

func (f *signInForm) setFocus(i int) {
	f.focus = i
	if i == 0 {
		f.email.Focus()
		f.password.Blur()
	} else {
		f.email.Blur()
		f.password.Focus()
	}
}

func (f *signInForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if f.focus == 0 {
		f.email, cmd = f.email.Update(msg)
	} else {
		f.password, cmd = f.password.Update(msg)
	}
	return cmd
}

func signInCmd(auth Auth, email, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return signInMsg{err: auth.SignIn(ctx, email, password)}
	}
}

func (m *Model) updateSignIn(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.signingIn {
		return m, nil
	}
	switch {
	case key.Matches(msg, keys.NextTab), key.Matches(msg, keys.PrevTab),
		msg.Type == tea.KeyUp, msg.Type == tea.KeyDown:
		m.signIn.setFocus(1 - m.signIn.focus)
		return m, nil
	case key.Matches(msg, keys.Enter):
		email := strings.TrimSpace(m.signIn.email.Value())
		password := m.signIn.password.Value()
		if email == "" {
			m.signIn.setFocus(0)
			return m, nil
		}
		if password == "" {
			m.signIn.setFocus(1)
			return m, nil
		}
		m.signingIn = true
		m.setStatus("Signing in...", false)
		return m, signInCmd(m.opts.Auth, email, password)
	}
	return m, m.signIn.update(msg)
}

func (m *Model) viewSignIn() string {
	form := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Sign in"),
		"",
		labelStyle.Render("Email")+m.signIn.email.View(),
		labelStyle.Render("Password")+m.signIn.password.View(),
		"",
		mutedStyle.Render("enter sign in · tab switch · ctrl+c quit"),
	)
	box := boxStyle.Render(form)
	if m.width > 0 && m.height > 1 {
		return lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}
