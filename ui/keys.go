package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Play        key.Binding
	Stop        key.Binding
	Next        key.Binding
	Prev        key.Binding
	Faster      key.Binding
	Slower      key.Binding
	Louder      key.Binding
	Quieter     key.Binding
	AutoAdvance key.Binding
	Copy        key.Binding
	Edit        key.Binding
	Reload      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Play: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play/pause"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop"),
		),
		Next: key.NewBinding(
			key.WithKeys("n", "right", "l"),
			key.WithHelp("n/→", "next paragraph"),
		),
		Prev: key.NewBinding(
			key.WithKeys("p", "left", "h"),
			key.WithHelp("p/←", "previous paragraph"),
		),
		Faster: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "faster"),
		),
		Slower: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "slower"),
		),
		Louder: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑", "louder"),
		),
		Quieter: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓", "quieter"),
		),
		AutoAdvance: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "toggle auto-advance"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy paragraph"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit document"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload document"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Next, k.Prev, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.Stop, k.Next, k.Prev},
		{k.Faster, k.Slower, k.Louder, k.Quieter},
		{k.AutoAdvance, k.Copy, k.Edit, k.Reload},
		{k.Help, k.Quit},
	}
}
