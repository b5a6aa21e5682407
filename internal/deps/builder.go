package deps

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mabhi256/jverify/internal/logging"
	"github.com/mabhi256/jverify/internal/plugin"
)

type CyclePolicy int

const (
	// TolerateCycles flags cyclic nodes and keeps going
	TolerateCycles CyclePolicy = iota
	// FailOnCycle aborts the traversal with a *CycleError
	FailOnCycle
)

func (p CyclePolicy) String() string {
	if p == FailOnCycle {
		return "fail"
	}
	return "tolerate"
}

func ParseCyclePolicy(s string) (CyclePolicy, error) {
	switch s {
	case "", "tolerate":
		return TolerateCycles, nil
	case "fail":
		return FailOnCycle, nil
	}
	return 0, fmt.Errorf("unknown cycle policy %q, expected tolerate or fail", s)
}

// DefaultModules ship with every host and are never resolved to a plugin
var DefaultModules = []string{
	"com.intellij.modules.platform",
	"com.intellij.modules.lang",
	"com.intellij.modules.vcs",
	"com.intellij.modules.xml",
	"com.intellij.modules.xdebugger",
	"com.intellij.modules.all",
}

// DefaultModuleFallbacks names the plugin that provides a well-known module
// when no bundled plugin declares it
var DefaultModuleFallbacks = map[string]string{
	"com.intellij.modules.java": "com.intellij.java",
}

type Option func(*Builder)

func WithCyclePolicy(policy CyclePolicy) Option {
	return func(b *Builder) { b.policy = policy }
}

// WithDefaultModules replaces DefaultModules
func WithDefaultModules(modules ...string) Option {
	return func(b *Builder) {
		b.defaultModules = make(map[string]bool, len(modules))
		for _, m := range modules {
			b.defaultModules[m] = true
		}
	}
}

// WithModuleFallbacks adds module → plugin id fallbacks on top of DefaultModuleFallbacks
func WithModuleFallbacks(fallbacks map[string]string) Option {
	return func(b *Builder) {
		for module, id := range fallbacks {
			b.fallbacks[module] = id
		}
	}
}

// WithProvider sets where plugins missing from the host are fetched from
func WithProvider(p plugin.Provider) Option {
	return func(b *Builder) { b.provider = p }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Builder) { b.logger = l }
}

// Builder resolves dependency graphs against one host
type Builder struct {
	host           *plugin.Host
	policy         CyclePolicy
	defaultModules map[string]bool
	fallbacks      map[string]string
	provider       plugin.Provider
	logger         logrus.FieldLogger
}

func NewBuilder(host *plugin.Host, opts ...Option) *Builder {
	b := &Builder{
		host:      host,
		fallbacks: make(map[string]string, len(DefaultModuleFallbacks)),
	}
	for module, id := range DefaultModuleFallbacks {
		b.fallbacks[module] = id
	}
	WithDefaultModules(DefaultModules...)(b)
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.OrDiscard(b.logger).WithField("component", "deps")
	return b
}

func (b *Builder) Host() *plugin.Host {
	return b.host
}

type visitState int

const (
	unvisited visitState = iota
	inProgress
	resolved
)

// frame is one plugin on the DFS stack. The stack from the root to the top is the current path.
type frame struct {
	node    NodeID
	deps    []plugin.Dependency
	next    int
	counted map[string]bool
	failure *MissingDependencyError
}

type traversal struct {
	*Builder
	ctx    context.Context
	graph  *Graph
	state  map[string]visitState
	nodeOf map[string]NodeID
	stack  []*frame
}

/*
Build resolves root's dependency closure with an iterative depth-first traversal.

Module dependencies are visited before plugin dependencies. A missing optional
dependency is recorded on its node; a missing mandatory one fails the node and
every ancestor that reaches it through mandatory edges. When the root fails,
Build returns the graph together with a *MissingDependencyError. Under
FailOnCycle the first cycle aborts with a *CycleError and no graph.
*/
func (b *Builder) Build(ctx context.Context, root *plugin.Plugin) (*Graph, error) {
	t := &traversal{
		Builder: b,
		ctx:     ctx,
		graph:   &Graph{host: b.host.Version()},
		state:   make(map[string]visitState),
		nodeOf:  make(map[string]NodeID),
	}

	t.push(t.newNode(root))
	for len(t.stack) > 0 {
		if err := t.step(); err != nil {
			return nil, err
		}
	}

	g := t.graph
	if failure := g.Root().Failure; failure != nil {
		return g, failure
	}
	b.logger.WithFields(logrus.Fields{
		"plugin":     root.ID(),
		"transitive": len(g.Root().Transitive),
		"cycles":     len(g.cycles),
	}).Debug("Dependency graph resolved")
	return g, nil
}

func (t *traversal) newNode(p *plugin.Plugin) *Node {
	node := &Node{ID: NodeID(len(t.graph.nodes)), Plugin: p}
	t.graph.nodes = append(t.graph.nodes, node)
	t.nodeOf[p.ID()] = node.ID
	t.state[p.ID()] = inProgress
	return node
}

func (t *traversal) push(node *Node) {
	t.stack = append(t.stack, &frame{
		node:    node.ID,
		deps:    t.dependencyOrder(node.Plugin),
		counted: make(map[string]bool),
	})
}

// dependencyOrder lists module dependencies first, without the default modules, then plugin dependencies
func (t *traversal) dependencyOrder(p *plugin.Plugin) []plugin.Dependency {
	var modules, plugins []plugin.Dependency
	for _, d := range p.Dependencies() {
		switch {
		case d.Module && t.defaultModules[d.ID]:
		case d.Module:
			modules = append(modules, d)
		default:
			plugins = append(plugins, d)
		}
	}
	return append(modules, plugins...)
}

func (t *traversal) step() error {
	top := t.stack[len(t.stack)-1]
	node := t.graph.nodes[top.node]

	if top.failure != nil || top.next >= len(top.deps) {
		t.finish(top)
		t.stack = t.stack[:len(t.stack)-1]
		if len(t.stack) > 0 {
			t.childDone(t.stack[len(t.stack)-1], node)
		}
		return nil
	}

	dep := top.deps[top.next]
	top.next++

	p, reason, err := t.resolve(dep)
	if err != nil {
		return err
	}
	if p == nil {
		t.missing(top, node, dep, reason)
		return nil
	}
	if p.ID() == node.Plugin.ID() || top.counted[p.ID()] {
		return nil
	}
	top.counted[p.ID()] = true

	switch t.state[p.ID()] {
	case resolved:
		child := t.graph.nodes[t.nodeOf[p.ID()]]
		if child.Failure != nil {
			t.dependencyFailed(top, node, dep, child.Failure)
			return nil
		}
		node.Edges = append(node.Edges, Edge{Dependency: dep, To: child.ID})
	case inProgress:
		return t.cycle(node, dep, p)
	default:
		child := t.newNode(p)
		node.Edges = append(node.Edges, Edge{Dependency: dep, To: child.ID})
		t.push(child)
	}
	return nil
}

// childDone runs on the parent frame once the child it descended into is resolved
func (t *traversal) childDone(parent *frame, child *Node) {
	if child.Failure == nil {
		return
	}
	node := t.graph.nodes[parent.node]
	node.Edges = node.Edges[:len(node.Edges)-1]
	t.dependencyFailed(parent, node, parent.deps[parent.next-1], child.Failure)
}

func (t *traversal) missing(top *frame, node *Node, dep plugin.Dependency, reason string) {
	node.Missing = append(node.Missing, MissingDependency{Dependency: dep, Reason: reason})
	t.logger.WithFields(logrus.Fields{
		"plugin":     node.Plugin.ID(),
		"dependency": dep.String(),
	}).Debug(reason)

	if !dep.Optional {
		top.failure = &MissingDependencyError{ID: dep.ID, Chain: t.chain(), Reason: reason}
	}
}

// dependencyFailed handles a dependency that resolved to a plugin whose own mandatory dependencies are missing
func (t *traversal) dependencyFailed(top *frame, node *Node, dep plugin.Dependency, failure *MissingDependencyError) {
	reason := fmt.Sprintf("%s cannot be loaded: %s", dep.ID, failure.Error())
	node.Missing = append(node.Missing, MissingDependency{Dependency: dep, Reason: reason})
	if !dep.Optional {
		top.failure = failure
	}
}

func (t *traversal) cycle(node *Node, dep plugin.Dependency, ancestor *plugin.Plugin) error {
	start := len(t.stack) - 1
	for start >= 0 && t.graph.nodes[t.stack[start].node].Plugin.ID() != ancestor.ID() {
		start--
	}
	if start < 0 {
		panic(fmt.Sprintf("deps: %s is in progress but not on the stack", ancestor.ID()))
	}

	path := make([]string, 0, len(t.stack)-start+1)
	for _, f := range t.stack[start:] {
		n := t.graph.nodes[f.node]
		n.Cyclic = true
		path = append(path, n.Plugin.ID())
	}
	path = append(path, ancestor.ID())
	t.graph.cycles = append(t.graph.cycles, path)

	t.logger.WithField("cycle", FormatCycle(path)).Debug("Dependency cycle detected")
	if t.policy == FailOnCycle {
		return &CycleError{Path: path}
	}

	node.Edges = append(node.Edges, Edge{Dependency: dep, To: t.nodeOf[ancestor.ID()], Back: true})
	return nil
}

// finish computes the closure of a node whose dependencies are all visited.
// A back edge contributes only its target, which is still being resolved.
func (t *traversal) finish(f *frame) {
	node := t.graph.nodes[f.node]
	t.state[node.Plugin.ID()] = resolved
	node.Failure = f.failure
	if node.Failure != nil {
		return
	}

	seen := map[string]bool{node.Plugin.ID(): true}
	add := func(p *plugin.Plugin) {
		if !seen[p.ID()] {
			seen[p.ID()] = true
			node.Transitive = append(node.Transitive, p)
		}
	}
	for _, edge := range node.Edges {
		child := t.graph.nodes[edge.To]
		add(child.Plugin)
		if edge.Back {
			continue
		}
		for _, p := range child.Transitive {
			add(p)
		}
	}
}

func (t *traversal) chain() []string {
	ids := make([]string, len(t.stack))
	for i, f := range t.stack {
		ids[i] = t.graph.nodes[f.node].Plugin.ID()
	}
	return ids
}

// resolve finds the plugin serving dep. A nil plugin comes with the reason it is missing.
// Only context cancellation is returned as an error.
func (t *traversal) resolve(dep plugin.Dependency) (*plugin.Plugin, string, error) {
	if !dep.Module {
		return t.resolvePlugin(dep.ID)
	}

	if p, ok := t.host.FindPluginByModule(dep.ID); ok {
		return p, "", nil
	}
	fallback, ok := t.fallbacks[dep.ID]
	if !ok {
		return nil, fmt.Sprintf("module %s is not defined by any plugin of %s", dep.ID, t.host.Version()), nil
	}
	p, reason, err := t.resolvePlugin(fallback)
	if p == nil && err == nil {
		reason = fmt.Sprintf("module %s is not defined by any plugin of %s and its fallback %s", dep.ID, t.host.Version(), reason)
	}
	return p, reason, err
}

func (t *traversal) resolvePlugin(id string) (*plugin.Plugin, string, error) {
	if n, ok := t.nodeOf[id]; ok {
		return t.graph.nodes[n].Plugin, "", nil
	}
	if p, ok := t.host.FindPluginByID(id); ok {
		return p, "", nil
	}
	if t.provider == nil {
		return nil, fmt.Sprintf("plugin %s is not bundled with %s", id, t.host.Version()), nil
	}

	p, err := t.provider.Fetch(t.ctx, t.host.Version(), id)
	switch {
	case err == nil:
		return p, "", nil
	case t.ctx.Err() != nil:
		return nil, "", t.ctx.Err()
	case errors.Is(err, plugin.ErrPluginNotFound):
		return nil, fmt.Sprintf("plugin %s is not available for %s", id, t.host.Version()), nil
	default:
		return nil, fmt.Sprintf("failed to fetch plugin %s: %v", id, err), nil
	}
}
