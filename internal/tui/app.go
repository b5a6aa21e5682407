// Package tui browses verification outcomes interactively.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/jverify/internal/pipeline"
	"github.com/mabhi256/jverify/internal/problem"
	"github.com/mabhi256/jverify/internal/report"
	"github.com/mabhi256/jverify/utils"
)

// pluginItem is one outcome in the plugin list
type pluginItem struct {
	outcome *pipeline.Outcome
}

func (i pluginItem) FilterValue() string {
	return i.outcome.Task.Plugin.ID()
}

func (i pluginItem) Title() string {
	verdict := report.Verdict(i.outcome)
	return fmt.Sprintf("%s %s", utils.GetSeverityIcon(verdict), utils.TruncateString(i.outcome.Task.Plugin.String(), 50))
}

func (i pluginItem) Description() string {
	o := i.outcome
	if o.Err != nil {
		return utils.TruncateString(o.Err.Error(), 70)
	}
	return fmt.Sprintf("%s · %d classes · %d errors · %d warnings",
		o.Task.Host.Version(), o.Classes, len(o.Problems.Errors()), len(o.Problems.Warnings()))
}

func NewModel(outcomes []*pipeline.Outcome) *Model {
	items := make([]list.Item, len(outcomes))
	for i, o := range outcomes {
		items[i] = pluginItem{outcome: o}
	}
	plugins := list.New(items, list.NewDefaultDelegate(), 0, 0)
	plugins.Title = "Verified plugins"
	plugins.SetShowHelp(false)

	return &Model{
		outcomes:   outcomes,
		currentTab: PluginsTab,
		plugins:    plugins,
		selected:   make(map[TabType]int),
		expanded:   map[TabType]map[int]bool{ErrorsTab: {}, WarningsTab: {}},
		help:       help.New(),
		keys:       DefaultKeyMap(),
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.plugins.SetSize(msg.Width, max(msg.Height-4, 1))

	case tea.KeyMsg:
		// the filter input owns every key while typing
		if m.currentTab == PluginsTab && m.plugins.FilterState() == list.Filtering {
			return m.updatePlugins(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
		case key.Matches(msg, m.keys.Tab1):
			m.currentTab = PluginsTab
		case key.Matches(msg, m.keys.Tab2):
			m.currentTab = ErrorsTab
		case key.Matches(msg, m.keys.Tab3):
			m.currentTab = WarningsTab
		case key.Matches(msg, m.keys.Tab4):
			m.currentTab = KindsTab
		case key.Matches(msg, m.keys.Left):
			m.currentTab = utils.GetPrevEnum(m.currentTab, lastTab)
		case key.Matches(msg, m.keys.Right):
			m.currentTab = utils.GetNextEnum(m.currentTab, lastTab)
		default:
			return m.handleTabSpecificKeys(msg)
		}
	}

	return m, nil
}

func (m *Model) handleTabSpecificKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.currentTab {
	case PluginsTab:
		return m.updatePlugins(msg)
	case ErrorsTab, WarningsTab:
		return m.handleProblemKeys(msg)
	}
	return m, nil
}

func (m *Model) updatePlugins(msg tea.Msg) (tea.Model, tea.Cmd) {
	before := m.plugins.Index()
	var cmd tea.Cmd
	m.plugins, cmd = m.plugins.Update(msg)
	if m.plugins.Index() != before {
		m.resetSelection()
	}
	return m, cmd
}

func (m *Model) handleProblemKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	problems := m.currentProblems()
	sel := m.selected[m.currentTab]

	switch {
	case key.Matches(msg, m.keys.Up):
		if sel > 0 {
			m.selected[m.currentTab] = sel - 1
		}
	case key.Matches(msg, m.keys.Down):
		if sel < len(problems)-1 {
			m.selected[m.currentTab] = sel + 1
		}
	case key.Matches(msg, m.keys.Enter):
		if len(problems) > 0 {
			m.expanded[m.currentTab][sel] = !m.expanded[m.currentTab][sel]
		}
	}
	return m, nil
}

func (m *Model) resetSelection() {
	clear(m.selected)
	for _, e := range m.expanded {
		clear(e)
	}
}

// current is the outcome selected in the plugin list
func (m *Model) current() *pipeline.Outcome {
	if item, ok := m.plugins.SelectedItem().(pluginItem); ok {
		return item.outcome
	}
	return nil
}

func (m *Model) currentProblems() []problem.Problem {
	o := m.current()
	if o == nil {
		return nil
	}
	var problems []problem.Problem
	switch m.currentTab {
	case ErrorsTab:
		problems = o.Problems.Errors()
	case WarningsTab:
		problems = o.Problems.Warnings()
	}
	return problems
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	height := max(m.height-5, 1)
	var content string
	switch m.currentTab {
	case PluginsTab:
		content = m.plugins.View()
	case ErrorsTab, WarningsTab:
		content = m.renderProblems(height)
	case KindsTab:
		content = renderKinds(m.current(), m.width, height)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		content,
		utils.HelpBarStyle.Width(m.width).Render(m.help.View(m.keys)),
	)
}

func (m *Model) renderHeader() string {
	var tabs []string
	for t := PluginsTab; t <= lastTab; t++ {
		style := utils.TabInactiveStyle
		indicator := " "
		if t == m.currentTab {
			style = utils.TabActiveStyle
			indicator = "●"
		}
		tabs = append(tabs, style.Render(fmt.Sprintf("%s %s %s [%d]", indicator, t.icon(), t, int(t)+1)))
	}

	title := "no plugin selected"
	if o := m.current(); o != nil {
		title = fmt.Sprintf("%s against %s", o.Task.Plugin, o.Task.Host.Version())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		strings.Join(tabs, "  ")+"  "+utils.MutedStyle.Render(title),
		strings.Repeat("─", m.width),
	)
}

// Run opens the browser on outcomes and blocks until the user quits
func Run(outcomes []*pipeline.Outcome) error {
	program := tea.NewProgram(
		NewModel(outcomes),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err := program.Run()
	return err
}
