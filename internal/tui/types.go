package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"

	"github.com/mabhi256/jverify/internal/pipeline"
)

type Model struct {
	// Data
	outcomes []*pipeline.Outcome

	// UI State
	currentTab TabType
	width      int
	height     int

	plugins  list.Model
	selected map[TabType]int
	expanded map[TabType]map[int]bool
	showHelp bool

	help help.Model
	keys KeyMap
}

type TabType int

const (
	PluginsTab TabType = iota
	ErrorsTab
	WarningsTab
	KindsTab
)

const lastTab = KindsTab

func (t TabType) String() string {
	switch t {
	case PluginsTab:
		return "Plugins"
	case ErrorsTab:
		return "Errors"
	case WarningsTab:
		return "Warnings"
	default:
		return "Kinds"
	}
}

func (t TabType) icon() string {
	switch t {
	case PluginsTab:
		return "📦"
	case ErrorsTab:
		return "🔴"
	case WarningsTab:
		return "⚠️"
	default:
		return "📊"
	}
}

type KeyMap struct {
	Tab1  key.Binding
	Tab2  key.Binding
	Tab3  key.Binding
	Tab4  key.Binding
	Left  key.Binding
	Right key.Binding
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	Help  key.Binding
	Quit  key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.Enter, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab1, k.Tab2, k.Tab3, k.Tab4},
		{k.Up, k.Down, k.Left, k.Right},
		{k.Enter, k.Help, k.Quit},
	}
}

func k(keys []string, help, desc string) key.Binding {
	return key.NewBinding(
		key.WithKeys(keys...),
		key.WithHelp(help, desc),
	)
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Tab1:  k([]string{"1"}, "1", "plugins"),
		Tab2:  k([]string{"2"}, "2", "errors"),
		Tab3:  k([]string{"3"}, "3", "warnings"),
		Tab4:  k([]string{"4"}, "4", "kinds"),
		Left:  k([]string{"left", "h"}, "←/h", "prev tab"),
		Right: k([]string{"right", "l"}, "→/l", "next tab"),
		Up:    k([]string{"up", "k"}, "↑/k", "up"),
		Down:  k([]string{"down", "j"}, "↓/j", "down"),
		Enter: k([]string{"enter", " "}, "enter", "expand"),
		Help:  k([]string{"?"}, "?", "help"),
		Quit:  k([]string{"q", "ctrl+c"}, "q", "quit"),
	}
}
