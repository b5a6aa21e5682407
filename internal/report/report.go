// Package report renders verification outcomes for terminals and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mabhi256/jverify/internal/classfile/model"
	"github.com/mabhi256/jverify/internal/pipeline"
	"github.com/mabhi256/jverify/internal/problem"
	"github.com/mabhi256/jverify/utils"
)

const (
	FormatCLI  = "cli"
	FormatJSON = "json"
)

// Print writes outcomes in the given format, cli or json
func Print(w io.Writer, outcomes []*pipeline.Outcome, format string) error {
	switch format {
	case FormatCLI, "":
		printCLI(w, outcomes)
		return nil
	case FormatJSON:
		return writeJSON(w, newDocument(outcomes))
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Verdict summarises an outcome as "failed", "error", "warning" or "ok"
func Verdict(o *pipeline.Outcome) string {
	switch {
	case o.Err != nil:
		return "failed"
	case o.Problems.HasErrors():
		return "error"
	case len(o.Problems.Warnings()) > 0:
		return "warning"
	default:
		return "ok"
	}
}

type document struct {
	Plugins []pluginReport `json:"plugins"`
	Summary summary        `json:"summary"`
}

type pluginReport struct {
	Plugin       string            `json:"plugin"`
	Version      string            `json:"version,omitempty"`
	Host         string            `json:"host"`
	Verdict      string            `json:"verdict"`
	Failure      string            `json:"failure,omitempty"`
	Classes      int               `json:"classes"`
	DurationMs   int64             `json:"durationMs"`
	Dependencies []string          `json:"dependencies,omitempty"`
	Errors       []problem.Problem `json:"errors"`
	Warnings     []problem.Problem `json:"warnings"`
}

type summary struct {
	Plugins  int                  `json:"plugins"`
	Failed   int                  `json:"failed"`
	Errors   int                  `json:"errors"`
	Warnings int                  `json:"warnings"`
	Kinds    map[problem.Kind]int `json:"kinds"`
}

func newDocument(outcomes []*pipeline.Outcome) document {
	doc := document{
		Plugins: make([]pluginReport, 0, len(outcomes)),
		Summary: summary{Plugins: len(outcomes), Kinds: make(map[problem.Kind]int)},
	}
	for _, o := range outcomes {
		r := pluginReport{
			Plugin:     o.Task.Plugin.ID(),
			Version:    o.Task.Plugin.Version(),
			Host:       o.Task.Host.Version(),
			Verdict:    Verdict(o),
			Classes:    o.Classes,
			DurationMs: o.Duration.Milliseconds(),
			Errors:     sortedOrEmpty(o.Problems.Errors()),
			Warnings:   sortedOrEmpty(o.Problems.Warnings()),
		}
		if o.Err != nil {
			r.Failure = o.Err.Error()
		}
		if o.Graph != nil {
			for _, p := range o.Graph.Transitive() {
				r.Dependencies = append(r.Dependencies, p.String())
			}
		}
		doc.Plugins = append(doc.Plugins, r)

		if o.Failed() {
			doc.Summary.Failed++
		}
		doc.Summary.Errors += len(r.Errors)
		doc.Summary.Warnings += len(r.Warnings)
		for kind, n := range o.Problems.CountByKind() {
			doc.Summary.Kinds[kind] += n
		}
	}
	return doc
}

func sortedOrEmpty(problems []problem.Problem) []problem.Problem {
	if problems == nil {
		return []problem.Problem{}
	}
	slices.SortStableFunc(problems, problem.Compare)
	return problems
}

func printCLI(w io.Writer, outcomes []*pipeline.Outcome) {
	for _, o := range outcomes {
		printOutcome(w, o)
	}
	if len(outcomes) > 1 {
		printSummary(w, newDocument(outcomes).Summary)
	}
}

func printOutcome(w io.Writer, o *pipeline.Outcome) {
	verdict := Verdict(o)
	fmt.Fprintf(w, "🔍 %s against %s\n", utils.TitleStyle.Render(o.Task.Plugin.String()), o.Task.Host.Version())

	deps := 0
	if o.Graph != nil {
		deps = len(o.Graph.Transitive())
	}
	fmt.Fprintf(w, "Classes: %d  |  Dependencies: %d  |  Duration: %s\n",
		o.Classes, deps, utils.FormatDuration(o.Duration))
	fmt.Fprintln(w, strings.Repeat("═", 65))

	if o.Err != nil {
		fmt.Fprintf(w, "%s %s\n\n", utils.GetSeverityIcon(verdict),
			utils.CriticalStyle.Render("Verification failed: "+o.Err.Error()))
		return
	}
	if o.Problems.Len() == 0 {
		fmt.Fprintf(w, "%s %s\n\n", utils.GetSeverityIcon(verdict), utils.GoodStyle.Render("Compatible"))
		return
	}

	printGroup(w, "error", "ERRORS", o.Problems.Errors())
	printGroup(w, "warning", "WARNINGS", o.Problems.Warnings())
}

func printGroup(w io.Writer, severity, title string, problems []problem.Problem) {
	if len(problems) == 0 {
		return
	}
	slices.SortStableFunc(problems, problem.Compare)

	style := utils.GetSeverityStyle(severity)
	fmt.Fprintf(w, "\n%s %s\n", utils.GetSeverityIcon(severity), style.Render(fmt.Sprintf("%s (%d)", title, len(problems))))
	fmt.Fprintln(w, strings.Repeat("─", 35))

	for i := 0; i < len(problems); {
		kind := problems[i].Kind
		j := i
		for j < len(problems) && problems[j].Kind == kind {
			j++
		}
		fmt.Fprintf(w, "%s (%d)\n", utils.InfoStyle.Render(kind.String()), j-i)
		for _, p := range problems[i:j] {
			fmt.Fprintf(w, "   %s: %s\n", utils.MutedStyle.Render(displayLocation(p.Location)), p.Description)
		}
		i = j
	}
	fmt.Fprintln(w)
}

func displayLocation(loc problem.Location) string {
	name := model.JavaName(loc.Class)
	if loc.Member == "" {
		return name
	}
	return name + "." + loc.Member
}

func printSummary(w io.Writer, s summary) {
	fmt.Fprintln(w, "📊 SUMMARY")
	fmt.Fprintln(w, strings.Repeat("─", 35))

	status := "ok"
	if s.Failed > 0 {
		status = "error"
	}
	fmt.Fprintf(w, "%s %d of %d plugins failed  |  %d errors  |  %d warnings\n",
		utils.GetSeverityIcon(status), s.Failed, s.Plugins, s.Errors, s.Warnings)

	total := s.Errors + s.Warnings
	if total == 0 {
		return
	}
	kinds := make([]problem.Kind, 0, len(s.Kinds))
	for k := range s.Kinds {
		kinds = append(kinds, k)
	}
	slices.SortFunc(kinds, func(a, b problem.Kind) int {
		if s.Kinds[a] != s.Kinds[b] {
			return s.Kinds[b] - s.Kinds[a]
		}
		return int(a) - int(b)
	})

	fmt.Fprintln(w)
	for _, k := range kinds {
		share := float64(s.Kinds[k]) / float64(total)
		fmt.Fprintf(w, "%s %s %d\n", utils.PadRight(k.String(), 32),
			utils.CreateProgressBar(share, 20, utils.GetSeverityColor(k.Severity().String())), s.Kinds[k])
	}
}
