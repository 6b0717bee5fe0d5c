package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the run view.
type KeyMap struct {
	Stop key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Stop: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "stop and save checkpoint"),
		),
		Quit: key.NewBinding(
			key.WithKeys("enter", "q", "esc", "ctrl+c"),
			key.WithHelp("enter", "exit"),
		),
	}
}
