package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/jverify/internal/classfile/model"
	"github.com/mabhi256/jverify/internal/pipeline"
	"github.com/mabhi256/jverify/internal/problem"
	"github.com/mabhi256/jverify/utils"
)

func (m *Model) renderProblems(height int) string {
	o := m.current()
	if o == nil {
		return utils.MutedStyle.Render("Select a plugin first [1]")
	}
	if o.Err != nil {
		return utils.CriticalStyle.Render("❌ Verification failed: ") + utils.TextStyle.Render(o.Err.Error())
	}

	problems := m.currentProblems()
	if len(problems) == 0 {
		return utils.GoodStyle.Render(fmt.Sprintf("✅ No %s", strings.ToLower(m.currentTab.String())))
	}

	sel := m.selected[m.currentTab]
	var lines []string
	selectedLine := 0
	for i, p := range problems {
		marker := "  "
		style := utils.TextStyle
		if i == sel {
			marker = "▶ "
			style = utils.InfoStyle.Bold(true)
			selectedLine = len(lines)
		}
		lines = append(lines, fmt.Sprintf("%s%s %s", marker,
			utils.GetSeverityStyle(p.Severity.String()).Render(p.Kind.String()),
			style.Render(utils.TruncateString(location(p.Location), max(m.width-40, 20)))))

		if m.expanded[m.currentTab][i] {
			for _, l := range utils.WrapText(p.Description, max(m.width-8, 20)) {
				lines = append(lines, "      "+l)
			}
			if p.Target != "" {
				lines = append(lines, "      "+utils.MutedStyle.Render("target: "+p.Target))
			}
		}
	}

	// keep the selection on screen
	start := 0
	if selectedLine >= height {
		start = selectedLine - height + 1
	}
	end := min(start+height, len(lines))
	return strings.Join(lines[start:end], "\n")
}

func location(loc problem.Location) string {
	name := model.JavaName(loc.Class)
	if loc.Member == "" {
		return name
	}
	return name + "." + loc.Member
}

// renderKinds draws a horizontal bar per problem kind of o
func renderKinds(o *pipeline.Outcome, width, height int) string {
	if o == nil {
		return utils.MutedStyle.Render("Select a plugin first [1]")
	}
	counts := o.Problems.CountByKind()
	if len(counts) == 0 {
		return utils.GoodStyle.Render("✅ No problems")
	}

	kinds := make([]problem.Kind, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)

	data := make([]barchart.BarData, 0, len(kinds))
	for _, kind := range kinds {
		style := lipgloss.NewStyle().Foreground(utils.GetSeverityColor(kind.Severity().String()))
		data = append(data, barchart.BarData{
			Label: utils.TruncateString(kind.String(), 24),
			Values: []barchart.BarValue{
				{Name: kind.String(), Value: float64(counts[kind]), Style: style},
			},
		})
	}

	chartHeight := min(height-2, len(kinds)*2)
	chart := barchart.New(max(width-2, 10), max(chartHeight, len(kinds)), barchart.WithHorizontalBars())
	chart.PushAll(data)
	chart.Draw()

	var legend []string
	for _, kind := range kinds {
		legend = append(legend, fmt.Sprintf("%s %d", utils.PadRight(kind.String(), 32), counts[kind]))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		chart.View(),
		"",
		utils.MutedStyle.Render(strings.Join(legend, "\n")),
	)
}
