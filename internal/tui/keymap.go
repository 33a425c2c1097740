package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the debug screen bindings.
type keyMap struct {
	quit        key.Binding
	refresh     key.Binding
	pause       key.Binding
	diagnostics key.Binding
	reset       key.Binding
	toggleHelp  key.Binding
}

// newKeyMap constructs the default bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "poll now")),
		pause:       key.NewBinding(key.WithKeys("p", "space"), key.WithHelp("p", "pause")),
		diagnostics: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "diagnostics")),
		reset:       key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reset blocks")),
		toggleHelp:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
	}
}

// ShortHelp returns the compact help row.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.refresh, k.pause, k.diagnostics, k.quit}
}

// FullHelp returns the expanded help rows.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.refresh, k.pause, k.reset},
		{k.diagnostics, k.toggleHelp, k.quit},
	}
}
