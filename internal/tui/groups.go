package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m *Model) refreshGroups() {
	m.groupCursor = clamp(m.groupCursor, len(m.live.groups.Groups()))
}

func (m *Model) updateGroups(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	groups := m.live.groups.Groups()
	switch {
	case key.Matches(msg, keys.Up):
		m.groupCursor = clamp(m.groupCursor-1, len(groups))
	case key.Matches(msg, keys.Down):
		m.groupCursor = clamp(m.groupCursor+1, len(groups))
	case key.Matches(msg, keys.Enter):
		if len(groups) == 0 {
			return m, nil
		}
		g := groups[clamp(m.groupCursor, len(groups))]
		if err := m.live.groups.Open(g.ID, g.Name); err != nil {
			m.setStatus("Open group: "+err.Error(), true)
		}
	}
	return m, nil
}

func (m *Model) viewGroups() string {
	groups := m.live.groups.Groups()
	if len(groups) == 0 {
		return mutedStyle.Render("  You are not in any group yet. Create one from Contacts.")
	}
	rows := make([]string, 0, len(groups))
	for i, g := range groups {
		detail := mutedStyle.Render(fmt.Sprintf("  %d members · %s", g.MemberCount, strings.Join(g.MemberNames, ", ")))
		if i == m.groupCursor {
			rows = append(rows, cursorStyle.Render("› "+g.Name)+detail)
		} else {
			rows = append(rows, itemStyle.Render(g.Name)+detail)
		}
	}
	return strings.Join(rows, "\n")
}
