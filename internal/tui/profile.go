package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmynk/groupchat/internal/screens"
)

const (
	actionSaveProfile = "Save profile"
	actionPickImage   = "Pick image"
	actionSignOut     = "Sign out"
)

var fieldLabels = map[screens.Field]string{
	screens.FieldNom:           "Name",
	screens.FieldPseudo:        "Nickname",
	screens.FieldTelephone:     "Telephone",
	screens.FieldAdresse:       "Address",
	screens.FieldDateNaissance: "Date of birth",
	screens.FieldLieuNaissance: "Place of birth",
	screens.FieldEmploi:        "Occupation",
}

// refreshProfile copies the editor's form into the inputs, leaving the one
// being edited alone.
func (m *Model) refreshProfile() {
	if m.live == nil {
		return
	}
	p := m.live.profile
	for i, f := range screens.Fields {
		if m.editing && i == m.fieldCursor {
			continue
		}
		m.fields[i].SetValue(p.Field(f))
	}
}

func (m *Model) updateProfile(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.live.profile
	switch {
	case key.Matches(msg, keys.Up):
		m.fieldCursor = clamp(m.fieldCursor-1, len(m.fields))
	case key.Matches(msg, keys.Down):
		m.fieldCursor = clamp(m.fieldCursor+1, len(m.fields))
	case key.Matches(msg, keys.Enter):
		m.editing = true
		return m, m.fields[m.fieldCursor].Focus()
	case key.Matches(msg, keys.Save):
		m.setStatus("Saving...", false)
		return m, runAction(actionSaveProfile, p.Save)
	case key.Matches(msg, keys.PickImage):
		return m, runAction(actionPickImage, p.PickImage)
	case key.Matches(msg, keys.SignOut):
		return m, runAction(actionSignOut, p.SignOut)
	}
	return m, nil
}

func (m *Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := screens.Fields[m.fieldCursor]
	switch {
	case key.Matches(msg, keys.Enter):
		m.live.profile.SetField(f, m.fields[m.fieldCursor].Value())
		m.stopEditing()
		return m, nil
	case key.Matches(msg, keys.Cancel):
		m.fields[m.fieldCursor].SetValue(m.live.profile.Field(f))
		m.stopEditing()
		return m, nil
	}
	var cmd tea.Cmd
	m.fields[m.fieldCursor], cmd = m.fields[m.fieldCursor].Update(msg)
	return m, cmd
}

func (m *Model) stopEditing() {
	m.editing = false
	m.fields[m.fieldCursor].Blur()
}

func (m *Model) viewProfile() string {
	p := m.live.profile
	var b strings.Builder
	b.WriteString(titleStyle.Render(p.Title()) + "\n\n")

	for i, f := range screens.Fields {
		prefix := "  "
		if i == m.fieldCursor {
			prefix = cursorStyle.Render("›")
		}
		b.WriteString(prefix + labelStyle.Render(fieldLabels[f]) + m.fields[i].View() + "\n")
	}

	b.WriteString("\n")
	switch state, ref := p.Image(); state {
	case screens.ImagePicked:
		b.WriteString(itemStyle.Render("Picture: " + ref + mutedStyle.Render(" (uploaded on save)")))
	case screens.ImageStored:
		b.WriteString(itemStyle.Render("Picture: stored"))
	default:
		b.WriteString(mutedStyle.Render("  No picture"))
	}
	b.WriteString("\n")

	if others := p.Others(); len(others) > 0 {
		names := make([]string, len(others))
		for i, o := range others {
			names[i] = o.DisplayTitle(o.Nom)
		}
		b.WriteString("\n" + mutedStyle.Render("Other profiles: "+strings.Join(names, ", ")))
	}
	return b.String()
}
