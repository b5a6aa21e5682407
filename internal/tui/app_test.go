package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jverify/internal/pipeline"
	"github.com/mabhi256/jverify/internal/plugin"
	"github.com/mabhi256/jverify/internal/problem"
)

func outcome(id string, err error, problems ...problem.Problem) *pipeline.Outcome {
	return &pipeline.Outcome{
		Task: pipeline.Task{
			Plugin: plugin.NewBuilder(id).MustBuild(),
			Host:   plugin.NewHostBuilder("233.1").MustBuild(),
		},
		Problems: problem.NewList(problems...),
		Err:      err,
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel() *Model {
	at := func(class string) problem.Location { return problem.Location{Class: class} }
	m := NewModel([]*pipeline.Outcome{
		outcome("com.acme", nil,
			problem.New(problem.ClassNotFound, at("com/acme/A"), "com/gone/X", "class com.gone.X is not found"),
			problem.New(problem.MethodNotFound, at("com/acme/B"), "api/S.m()V", "method api.S.m()V is not found"),
			problem.New(problem.DeprecatedAPIUsage, at("com/acme/C"), "api/Old", "deprecated class api.Old is used"),
		),
		outcome("com.broken", errors.New("mandatory dependency com.missing cannot be resolved")),
	})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func TestTabNavigation(t *testing.T) {
	t.Parallel()
	m := newTestModel()

	assert.Equal(t, PluginsTab, m.currentTab)
	assert.Contains(t, m.View(), "com.acme")

	m.Update(runes("2"))
	assert.Equal(t, ErrorsTab, m.currentTab)
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, WarningsTab, m.currentTab)
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, PluginsTab, m.currentTab)
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, KindsTab, m.currentTab)
}

func TestProblemSelection(t *testing.T) {
	t.Parallel()
	m := newTestModel()

	m.Update(runes("2"))
	view := m.View()
	assert.Contains(t, view, "ClassNotFound")
	assert.Contains(t, view, "MethodNotFound")
	assert.NotContains(t, view, "DeprecatedAPIUsage")
	assert.NotContains(t, view, "method api.S.m()V is not found")

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.selected[ErrorsTab])

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.expanded[ErrorsTab][1])
	view = m.View()
	assert.Contains(t, view, "method api.S.m()V is not found")
	assert.Contains(t, view, "target: api/S.m()V")

	m.Update(runes("3"))
	assert.Contains(t, m.View(), "DeprecatedAPIUsage")
}

func TestPluginSelectionResetsProblems(t *testing.T) {
	t.Parallel()
	m := newTestModel()

	m.Update(runes("2"))
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(runes("1"))
	m.Update(tea.KeyMsg{Type: tea.KeyDown})

	require.Equal(t, "com.broken", m.current().Task.Plugin.ID())
	assert.Zero(t, m.selected[ErrorsTab])

	m.Update(runes("2"))
	assert.Contains(t, m.View(), "Verification failed")
}

func TestKindsChart(t *testing.T) {
	t.Parallel()
	m := newTestModel()

	m.Update(runes("4"))
	view := m.View()
	assert.Contains(t, view, "ClassNotFound")
	assert.Contains(t, view, "DeprecatedAPIUsage")
}

func TestQuit(t *testing.T) {
	t.Parallel()
	m := newTestModel()

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
