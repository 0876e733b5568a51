package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	enter   key.Binding
	back    key.Binding
	retry   key.Binding
	another key.Binding
	copy    key.Binding
	open    key.Binding
	history key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "upload")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		retry:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		another: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new upload")),
		copy:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy link")),
		open:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		history: key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "history")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.enter, k.back},
		{k.retry, k.another, k.history},
		{k.copy, k.open, k.quit},
	}
}
