package report

import (
	"fmt"
	"io"

	"github.com/mabhi256/jverify/internal/deps"
	"github.com/mabhi256/jverify/utils"
)

// PrintGraph draws the dependency tree of g. A plugin reached a second time is
// listed without its subtree.
func PrintGraph(w io.Writer, g *deps.Graph) {
	root := g.Root()
	fmt.Fprintf(w, "📦 %s %s\n", utils.TitleStyle.Render(root.Plugin.String()),
		utils.MutedStyle.Render("on "+g.HostVersion()))

	t := &treePrinter{w: w, g: g, expanded: map[deps.NodeID]bool{root.ID: true}}
	t.children(root, "")

	if g.IsCyclic() {
		fmt.Fprintln(w)
		for _, c := range g.Cycles() {
			fmt.Fprintf(w, "🔁 %s\n", utils.WarningStyle.Render("cycle: "+deps.FormatCycle(c)))
		}
	}
	if f := root.Failure; f != nil {
		fmt.Fprintf(w, "\n%s %s\n", utils.GetSeverityIcon("failed"), utils.CriticalStyle.Render(f.Error()))
	}
}

type treePrinter struct {
	w        io.Writer
	g        *deps.Graph
	expanded map[deps.NodeID]bool
}

type treeLine struct {
	text string
	node *deps.Node
}

func (t *treePrinter) children(n *deps.Node, indent string) {
	var lines []treeLine
	for _, e := range n.Edges {
		child := t.g.Node(e.To)
		text := dependencyLabel(e.Dependency.ID, e.Dependency.Module, e.Dependency.Optional) + " → " + child.Plugin.String()
		switch {
		case e.Back:
			text += " " + utils.WarningStyle.Render("(cycle)")
			child = nil
		case t.expanded[child.ID]:
			text += " " + utils.MutedStyle.Render("(already listed)")
			child = nil
		default:
			t.expanded[child.ID] = true
		}
		lines = append(lines, treeLine{text: text, node: child})
	}
	for _, m := range n.Missing {
		style := utils.CriticalLightStyle
		if m.Dependency.Optional {
			style = utils.WarningLightStyle
		}
		text := dependencyLabel(m.Dependency.ID, m.Dependency.Module, m.Dependency.Optional) +
			" " + style.Render("✗ "+m.Reason)
		lines = append(lines, treeLine{text: text})
	}

	for i, l := range lines {
		branch, next := "├── ", "│   "
		if i == len(lines)-1 {
			branch, next = "└── ", "    "
		}
		fmt.Fprintf(t.w, "%s%s%s\n", indent, branch, l.text)
		if l.node != nil {
			t.children(l.node, indent+next)
		}
	}
}

func dependencyLabel(id string, module, optional bool) string {
	label := id
	if module {
		label = "module " + id
	}
	if optional {
		label += utils.MutedStyle.Render(" (optional)")
	}
	return label
}
