// SPDX-License-Identifier: MIT
package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Gate key.Binding
	Quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Gate: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "toggle gate"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Gate, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
