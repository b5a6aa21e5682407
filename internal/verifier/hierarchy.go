package verifier

import (
	"sync"

	"github.com/mabhi256/jverify/internal/classfile/model"
	"github.com/mabhi256/jverify/internal/resolver"
)

type lookup struct {
	class *model.ClassFile
	err   error
}

// hierarchy memoizes class lookups over the verification classpath for one run.
// It is shared by the per-class workers.
type hierarchy struct {
	env resolver.Resolver

	mu       sync.RWMutex
	classes  map[string]lookup
	complete map[string]bool
}

func newHierarchy(env resolver.Resolver) *hierarchy {
	return &hierarchy{
		env:      env,
		classes:  make(map[string]lookup),
		complete: make(map[string]bool),
	}
}

// find returns the class, nil when it is absent, or the decode error
func (h *hierarchy) find(name string) (*model.ClassFile, error) {
	h.mu.RLock()
	l, ok := h.classes[name]
	h.mu.RUnlock()
	if ok {
		return l.class, l.err
	}

	result := h.env.Find(name)
	l = lookup{class: result.Class, err: result.Err}

	h.mu.Lock()
	h.classes[name] = l
	h.mu.Unlock()
	return l.class, l.err
}

// seed records a lookup already made against the first layer of the classpath
func (h *hierarchy) seed(name string, result resolver.Result) {
	if result.Missing() {
		return
	}
	h.mu.Lock()
	if _, ok := h.classes[name]; !ok {
		h.classes[name] = lookup{class: result.Class, err: result.Err}
	}
	h.mu.Unlock()
}

// class is find without the error; undecodable classes count as absent
func (h *hierarchy) class(name string) *model.ClassFile {
	c, _ := h.find(name)
	return c
}

// isComplete reports whether every superclass and superinterface of c resolves
func (h *hierarchy) isComplete(c *model.ClassFile) bool {
	h.mu.RLock()
	done, ok := h.complete[c.Name]
	h.mu.RUnlock()
	if ok {
		return done
	}

	done = true
	visited := map[string]bool{c.Name: true}
	queue := []*model.ClassFile{c}
	for len(queue) > 0 && done {
		cur := queue[0]
		queue = queue[1:]
		for _, name := range supertypes(cur) {
			if visited[name] {
				continue
			}
			visited[name] = true
			parent := h.class(name)
			if parent == nil {
				done = false
				break
			}
			queue = append(queue, parent)
		}
	}

	h.mu.Lock()
	h.complete[c.Name] = done
	h.mu.Unlock()
	return done
}

func supertypes(c *model.ClassFile) []string {
	if c.SuperName == "" {
		return c.Interfaces
	}
	return append([]string{c.SuperName}, c.Interfaces...)
}

// superclasses returns the resolved superclass chain of c, nearest first, stopping at the first gap
func (h *hierarchy) superclasses(c *model.ClassFile) []*model.ClassFile {
	var chain []*model.ClassFile
	seen := map[string]bool{c.Name: true}
	for name := c.SuperName; name != "" && !seen[name]; {
		seen[name] = true
		parent := h.class(name)
		if parent == nil {
			break
		}
		chain = append(chain, parent)
		name = parent.SuperName
	}
	return chain
}

// interfaces returns every resolvable superinterface of c, including those inherited
// through superclasses, breadth first
func (h *hierarchy) interfaces(c *model.ClassFile) []*model.ClassFile {
	var out []*model.ClassFile
	seen := make(map[string]bool)

	var queue []string
	for _, k := range append([]*model.ClassFile{c}, h.superclasses(c)...) {
		queue = append(queue, k.Interfaces...)
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		iface := h.class(name)
		if iface == nil {
			continue
		}
		out = append(out, iface)
		queue = append(queue, iface.Interfaces...)
	}
	return out
}

// isSubtype reports whether sub is super or inherits from it
func (h *hierarchy) isSubtype(sub *model.ClassFile, super string) bool {
	if sub.Name == super {
		return true
	}
	for _, c := range h.superclasses(sub) {
		if c.Name == super {
			return true
		}
	}
	for _, c := range h.interfaces(sub) {
		if c.Name == super {
			return true
		}
	}
	return false
}

// maximallySpecific returns the superinterface methods of c matching name and
// descriptor that no other candidate overrides (JVMS 5.4.3.3)
func (h *hierarchy) maximallySpecific(c *model.ClassFile, name, desc string) []*model.Method {
	type candidate struct {
		method *model.Method
		owner  *model.ClassFile
	}
	var candidates []candidate
	for _, iface := range h.interfaces(c) {
		m := iface.FindMethod(name, desc)
		if m == nil || m.Access.IsPrivate() || m.Access.IsStatic() {
			continue
		}
		candidates = append(candidates, candidate{m, iface})
	}

	var out []*model.Method
	for i, cand := range candidates {
		overridden := false
		for j, other := range candidates {
			if i != j && other.owner.Name != cand.owner.Name && h.isSubtype(other.owner, cand.owner.Name) {
				overridden = true
				break
			}
		}
		if !overridden {
			out = append(out, cand.method)
		}
	}
	return out
}
