package tui

import "charm.land/bubbles/v2/key"

// keyMap represents key map data used by this package.
type keyMap struct {
	quit       key.Binding
	reload     key.Binding
	toggleHelp key.Binding
	moveUp     key.Binding
	moveDown   key.Binding
	addIssue   key.Binding
	issueInfo  key.Binding
	comment    key.Binding
	cycle      key.Binding
	back       key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveUp:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "issue up")),
		moveDown:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "issue down")),
		addIssue:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new issue")),
		issueInfo:  key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "issue info")),
		comment:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "comment")),
		cycle:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "cycle status")),
		back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.addIssue, k.issueInfo, k.comment, k.cycle, k.quit}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.addIssue, k.issueInfo, k.comment, k.cycle},
		{k.moveUp, k.moveDown, k.back, k.reload, k.toggleHelp, k.quit},
	}
}
