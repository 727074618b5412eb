package chat

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines keybindings for the chat TUI
type KeyMap struct {
	Quit     key.Binding
	Send     key.Binding
	Cancel   key.Binding
	Complete key.Binding
	Copy     key.Binding

	CodeUp   key.Binding
	CodeDown key.Binding
	ChatUp   key.Binding
	ChatDown key.Binding
}

// DefaultKeyMap returns the default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Complete: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "complete"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "copy code"),
		),
		CodeUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll code"),
		),
		CodeDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdown", "scroll code"),
		),
		ChatUp: key.NewBinding(
			key.WithKeys("shift+up", "ctrl+up"),
			key.WithHelp("shift+↑", "scroll chat"),
		),
		ChatDown: key.NewBinding(
			key.WithKeys("shift+down", "ctrl+down"),
			key.WithHelp("shift+↓", "scroll chat"),
		),
	}
}

// ShortHelp is shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Cancel, k.Copy, k.CodeUp, k.Quit}
}
