package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit      key.Binding
	NextTab   key.Binding
	PrevTab   key.Binding
	Up        key.Binding
	Down      key.Binding
	Enter     key.Binding
	Cancel    key.Binding
	Toggle    key.Binding
	NameGroup key.Binding
	Create    key.Binding
	Call      key.Binding
	SMS       key.Binding
	Chat      key.Binding
	Save      key.Binding
	PickImage key.Binding
	SignOut   key.Binding
}

var keys = keyMap{
	Quit:      key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	NextTab:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
	PrevTab:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous tab")),
	Up:        key.NewBinding(key.WithKeys("up", "k")),
	Down:      key.NewBinding(key.WithKeys("down", "j")),
	Enter:     key.NewBinding(key.WithKeys("enter")),
	Cancel:    key.NewBinding(key.WithKeys("esc")),
	Toggle:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
	NameGroup: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "group name")),
	Create:    key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "create group")),
	Call:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "call")),
	SMS:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sms")),
	Chat:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "chat")),
	Save:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
	PickImage: key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "pick image")),
	SignOut:   key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "sign out")),
}
