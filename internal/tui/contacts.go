package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmynk/groupchat/internal/models"
)

const actionCreateGroup = "Create group"

func (m *Model) refreshContacts() {
	c := m.live.contacts
	m.contactCursor = clamp(m.contactCursor, len(c.Contacts()))
	if !m.naming {
		m.groupName.SetValue(c.GroupName())
	}
}

func (m *Model) currentContact() (models.Profile, bool) {
	contacts := m.live.contacts.Contacts()
	if len(contacts) == 0 {
		return models.Profile{}, false
	}
	return contacts[clamp(m.contactCursor, len(contacts))], true
}

func (m *Model) updateContacts(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.live.contacts
	switch {
	case key.Matches(msg, keys.Up):
		m.contactCursor = clamp(m.contactCursor-1, len(c.Contacts()))
		return m, nil
	case key.Matches(msg, keys.Down):
		m.contactCursor = clamp(m.contactCursor+1, len(c.Contacts()))
		return m, nil
	case key.Matches(msg, keys.NameGroup):
		m.naming = true
		return m, m.groupName.Focus()
	case key.Matches(msg, keys.Create):
		return m, m.createGroup()
	}

	p, ok := m.currentContact()
	if !ok {
		return m, nil
	}
	var err error
	switch {
	case key.Matches(msg, keys.Toggle):
		_, err = c.Toggle(p.ID)
	case key.Matches(msg, keys.Chat):
		err = c.Chat(p.ID, p.Nom)
	case key.Matches(msg, keys.Call):
		err = c.Call(context.Background(), p.ID)
	case key.Matches(msg, keys.SMS):
		err = c.SMS(context.Background(), p.ID)
	}
	if err != nil {
		m.setStatus(err.Error(), true)
	}
	return m, nil
}

func (m *Model) updateNaming(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Enter):
		m.finishNaming()
		return m, m.createGroup()
	case key.Matches(msg, keys.Cancel):
		m.finishNaming()
		return m, nil
	}
	var cmd tea.Cmd
	m.groupName, cmd = m.groupName.Update(msg)
	m.live.contacts.SetGroupName(m.groupName.Value())
	return m, cmd
}

func (m *Model) finishNaming() {
	m.naming = false
	m.groupName.Blur()
	m.live.contacts.SetGroupName(m.groupName.Value())
}

func (m *Model) createGroup() tea.Cmd {
	c := m.live.contacts
	return runAction(actionCreateGroup, func(ctx context.Context) error {
		_, err := c.CreateGroup(ctx)
		return err
	})
}

func (m *Model) viewContacts() string {
	c := m.live.contacts
	var b strings.Builder
	b.WriteString(labelStyle.Render("Group name") + m.groupName.View() + "\n\n")

	contacts := c.Contacts()
	if len(contacts) == 0 {
		b.WriteString(mutedStyle.Render("  No contacts yet."))
		return b.String()
	}
	for i, p := range contacts {
		mark := "[ ] "
		if c.IsSelected(p.ID) {
			mark = selectedMarkStyle.Render("[x] ")
		}
		line := mark + p.Nom + mutedStyle.Render("  "+p.Telephone)
		if i == m.contactCursor {
			b.WriteString(cursorStyle.Render("› ") + line)
		} else {
			b.WriteString(itemStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if selected := c.Selected(); len(selected) > 0 {
		names := make([]string, len(selected))
		for i, p := range selected {
			names[i] = p.Nom
		}
		b.WriteString("\n" + mutedStyle.Render("Selected: "+strings.Join(names, ", ")))
	}
	return b.String()
}
