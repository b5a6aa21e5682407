package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mabhi256/jverify/internal/classfile/model"
	"github.com/mabhi256/jverify/internal/problem"
	"github.com/mabhi256/jverify/utils"
)

// Comparison is the difference between two stored runs of one plugin
type Comparison struct {
	Plugin     string            `json:"plugin"`
	Host       string            `json:"host,omitempty"`
	Older      int64             `json:"olderRun"`
	Newer      int64             `json:"newerRun"`
	Introduced []problem.Problem `json:"introduced"`
	Resolved   []problem.Problem `json:"resolved"`
}

// Compare diffs the problems of an older and a newer run
func Compare(pluginID, host string, olderRun, newerRun int64, older, newer []problem.Problem) Comparison {
	introduced, resolved := problem.Diff(older, newer)
	return Comparison{
		Plugin:     pluginID,
		Host:       host,
		Older:      olderRun,
		Newer:      newerRun,
		Introduced: sortedOrEmpty(introduced),
		Resolved:   sortedOrEmpty(resolved),
	}
}

func PrintDiff(w io.Writer, c Comparison, format string) error {
	switch format {
	case FormatCLI, "":
	case FormatJSON:
		return writeJSON(w, c)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	fmt.Fprintf(w, "🔍 %s: run #%d → run #%d\n", utils.TitleStyle.Render(c.Plugin), c.Older, c.Newer)
	fmt.Fprintln(w, strings.Repeat("═", 65))

	if len(c.Introduced) == 0 && len(c.Resolved) == 0 {
		fmt.Fprintf(w, "%s %s\n", utils.GetSeverityIcon("info"), "No changes")
		return nil
	}
	printChanges(w, "📈", "INTRODUCED", "+", utils.CriticalLightStyle.Render, c.Introduced)
	printChanges(w, "📉", "RESOLVED", "-", utils.GoodStyle.Render, c.Resolved)
	return nil
}

func printChanges(w io.Writer, icon, title, sign string, render func(...string) string, problems []problem.Problem) {
	if len(problems) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s %s (%d)\n", icon, title, len(problems))
	fmt.Fprintln(w, strings.Repeat("─", 35))
	for _, p := range problems {
		fmt.Fprintf(w, "%s %s %s: %s\n", render(sign), utils.InfoStyle.Render(p.Kind.String()),
			displayLocation(p.Location), p.Description)
	}
}

// ClassEntry is a class and every root serving it, first root winning
type ClassEntry struct {
	Name      string   `json:"name"`
	Locations []string `json:"locations"`
}

func (e ClassEntry) Duplicate() bool {
	return len(e.Locations) > 1
}

// PrintClasses lists classes with their locations and marks duplicates
func PrintClasses(w io.Writer, entries []ClassEntry, format string) error {
	switch format {
	case FormatCLI, "":
	case FormatJSON:
		if entries == nil {
			entries = []ClassEntry{}
		}
		return writeJSON(w, entries)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	duplicates := 0
	for _, e := range entries {
		name := model.JavaName(e.Name)
		if !e.Duplicate() {
			fmt.Fprintf(w, "%s %s\n", name, utils.MutedStyle.Render(strings.Join(e.Locations, ", ")))
			continue
		}
		duplicates++
		fmt.Fprintf(w, "%s %s %s\n", utils.GetSeverityIcon("warning"), name,
			utils.WarningLightStyle.Render(strings.Join(e.Locations, " shadows ")))
	}

	fmt.Fprintln(w, strings.Repeat("─", 35))
	fmt.Fprintf(w, "%d classes, %d duplicates\n", len(entries), duplicates)
	return nil
}
