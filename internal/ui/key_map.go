package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the browser.
type keyMap struct {
	up     key.Binding
	down   key.Binding
	filter key.Binding
	enter  key.Binding
	back   key.Binding
	lookup key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		filter: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		lookup: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "spotify lookup")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.filter},
		{k.enter, k.back, k.lookup},
		{k.quit},
	}
}
