// Package deps resolves a plugin's declared dependencies against a host into an
// ordered, cycle-safe dependency graph.
package deps

import (
	"slices"

	"github.com/mabhi256/jverify/internal/plugin"
	"github.com/mabhi256/jverify/internal/resolver"
)

// NodeID indexes a node in its graph's arena
type NodeID int

// Edge is a resolved dependency
type Edge struct {
	Dependency plugin.Dependency
	To         NodeID
	// Back marks an edge into an ancestor that was still being resolved (a cycle)
	Back bool
}

// MissingDependency is a declared dependency that could not be resolved
type MissingDependency struct {
	Dependency plugin.Dependency
	Reason     string
}

// Node is one plugin's resolved dependency closure
type Node struct {
	ID     NodeID
	Plugin *plugin.Plugin
	Edges  []Edge
	// Transitive is the dependency closure in discovery order, without the plugin itself
	Transitive []*plugin.Plugin
	Missing    []MissingDependency
	Cyclic     bool
	// Failure is set when a mandatory dependency could not be resolved
	Failure *MissingDependencyError
}

func (n *Node) MissingMandatory() []MissingDependency {
	return n.filterMissing(false)
}

func (n *Node) MissingOptional() []MissingDependency {
	return n.filterMissing(true)
}

func (n *Node) filterMissing(optional bool) []MissingDependency {
	var out []MissingDependency
	for _, m := range n.Missing {
		if m.Dependency.Optional == optional {
			out = append(out, m)
		}
	}
	return out
}

// Graph is the result of one traversal; it is not modified afterwards
type Graph struct {
	host   string
	root   NodeID
	nodes  []*Node
	cycles [][]string
}

func (g *Graph) Root() *Node {
	return g.nodes[g.root]
}

func (g *Graph) Node(id NodeID) *Node {
	return g.nodes[id]
}

// Nodes returns every visited node in discovery order, root first
func (g *Graph) Nodes() []*Node {
	return slices.Clone(g.nodes)
}

// NodeOf finds the node of a plugin id
func (g *Graph) NodeOf(id string) (*Node, bool) {
	for _, n := range g.nodes {
		if n.Plugin.ID() == id {
			return n, true
		}
	}
	return nil, false
}

// HostVersion is the host the graph was resolved against
func (g *Graph) HostVersion() string {
	return g.host
}

// Transitive is the root plugin's dependency closure in discovery order
func (g *Graph) Transitive() []*plugin.Plugin {
	return slices.Clone(g.Root().Transitive)
}

// Resolvers maps each transitive dependency to its classes, in discovery order
func (g *Graph) Resolvers() []resolver.Resolver {
	var out []resolver.Resolver
	for _, p := range g.Root().Transitive {
		out = append(out, p.Classes())
	}
	return out
}

// Missing collects missing dependencies of every node, keyed by the declaring plugin id
func (g *Graph) Missing() map[string][]MissingDependency {
	out := make(map[string][]MissingDependency)
	for _, n := range g.nodes {
		if len(n.Missing) > 0 {
			out[n.Plugin.ID()] = slices.Clone(n.Missing)
		}
	}
	return out
}

// Cycles returns every detected cycle as plugin ids, first and last identical
func (g *Graph) Cycles() [][]string {
	out := make([][]string, len(g.cycles))
	for i, c := range g.cycles {
		out[i] = slices.Clone(c)
	}
	return out
}

func (g *Graph) IsCyclic() bool {
	return len(g.cycles) > 0
}
