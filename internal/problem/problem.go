// Package problem defines the typed findings produced by verification.
package problem

import (
	"fmt"
	"slices"
	"strings"
)

// Location is where a problem was found: a class, and the member signature when applicable
type Location struct {
	Class  string `json:"class"`
	Member string `json:"member,omitempty"`
}

func (l Location) String() string {
	if l.Member == "" {
		return l.Class
	}
	return l.Class + "." + l.Member
}

// Problem is one verification finding. Problems are values and never change after creation.
type Problem struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Location Location `json:"location"`
	// Target is the symbol the problem is about: a class, member or dependency
	Target      string `json:"target,omitempty"`
	Description string `json:"description"`
}

// New creates a problem with the kind's default severity
func New(kind Kind, loc Location, target string, format string, args ...any) Problem {
	return Problem{
		Kind:        kind,
		Severity:    kind.Severity(),
		Location:    loc,
		Target:      target,
		Description: fmt.Sprintf(format, args...),
	}
}

func (p Problem) IsError() bool {
	return p.Severity == Error
}

// Key identifies a problem for deduplication and diffing
func (p Problem) Key() string {
	return strings.Join([]string{p.Kind.String(), p.Location.String(), p.Target, p.Description}, "\x00")
}

func (p Problem) String() string {
	return fmt.Sprintf("%s %s at %s: %s", p.Severity, p.Kind, p.Location, p.Description)
}

// List is an insertion-ordered set of problems
type List struct {
	items []Problem
	seen  map[string]struct{}
}

func NewList(problems ...Problem) *List {
	l := &List{}
	l.Add(problems...)
	return l
}

// Add appends problems that are not already in the list
func (l *List) Add(problems ...Problem) {
	if l.seen == nil {
		l.seen = make(map[string]struct{})
	}
	for _, p := range problems {
		key := p.Key()
		if _, dup := l.seen[key]; dup {
			continue
		}
		l.seen[key] = struct{}{}
		l.items = append(l.items, p)
	}
}

// Merge adds every problem of other in its order
func (l *List) Merge(other *List) {
	if other != nil {
		l.Add(other.items...)
	}
}

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

func (l *List) All() []Problem {
	if l == nil {
		return nil
	}
	return slices.Clone(l.items)
}

func (l *List) Errors() []Problem {
	return l.filter(func(p Problem) bool { return p.Severity == Error })
}

func (l *List) Warnings() []Problem {
	return l.filter(func(p Problem) bool { return p.Severity == Warning })
}

func (l *List) OfKind(kind Kind) []Problem {
	return l.filter(func(p Problem) bool { return p.Kind == kind })
}

func (l *List) HasErrors() bool {
	return len(l.Errors()) > 0
}

func (l *List) filter(keep func(Problem) bool) []Problem {
	if l == nil {
		return nil
	}
	var out []Problem
	for _, p := range l.items {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (l *List) CountByKind() map[Kind]int {
	counts := make(map[Kind]int)
	if l == nil {
		return counts
	}
	for _, p := range l.items {
		counts[p.Kind]++
	}
	return counts
}

// Compare orders problems by severity, kind, location, target and description
func Compare(a, b Problem) int {
	if a.Severity != b.Severity {
		return int(a.Severity) - int(b.Severity)
	}
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	if c := strings.Compare(a.Location.Class, b.Location.Class); c != 0 {
		return c
	}
	if c := strings.Compare(a.Location.Member, b.Location.Member); c != 0 {
		return c
	}
	if c := strings.Compare(a.Target, b.Target); c != 0 {
		return c
	}
	return strings.Compare(a.Description, b.Description)
}

// Sorted returns the problems ordered by Compare
func (l *List) Sorted() []Problem {
	out := l.All()
	slices.SortStableFunc(out, Compare)
	return out
}

// Diff returns problems present only in newer (introduced) and only in older (resolved)
func Diff(older, newer []Problem) (introduced, resolved []Problem) {
	oldKeys := make(map[string]bool, len(older))
	for _, p := range older {
		oldKeys[p.Key()] = true
	}
	newKeys := make(map[string]bool, len(newer))
	for _, p := range newer {
		newKeys[p.Key()] = true
		if !oldKeys[p.Key()] {
			introduced = append(introduced, p)
		}
	}
	for _, p := range older {
		if !newKeys[p.Key()] {
			resolved = append(resolved, p)
		}
	}
	return introduced, resolved
}
