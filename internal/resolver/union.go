package resolver

import (
	"iter"
	"strings"
)

// UnionResolver asks its children in order; the first child serving a name wins
type UnionResolver struct {
	children []Resolver
}

// Union composes resolvers in shadowing order. Nested unions are flattened and
// empty children dropped; no children yields Empty and a single child is returned as is.
// The union does not own its children: Close is a no-op.
func Union(children ...Resolver) Resolver {
	var flat []Resolver
	for _, child := range children {
		if child == nil {
			continue
		}
		if u, ok := child.(*UnionResolver); ok {
			flat = append(flat, u.children...)
			continue
		}
		if child.IsEmpty() {
			continue
		}
		flat = append(flat, child)
	}

	switch len(flat) {
	case 0:
		return Empty()
	case 1:
		return flat[0]
	default:
		return &UnionResolver{children: flat}
	}
}

type composite interface {
	Children() []Resolver
}

// Children returns the constituents of r: a union's children, or r itself
func Children(r Resolver) []Resolver {
	if c, ok := r.(composite); ok {
		return c.Children()
	}
	if r == nil || r.IsEmpty() {
		return nil
	}
	return []Resolver{r}
}

func (u *UnionResolver) Children() []Resolver {
	return append([]Resolver(nil), u.children...)
}

func (u *UnionResolver) Find(name string) Result {
	for _, child := range u.children {
		if result := child.Find(name); !result.Missing() {
			return result
		}
	}
	return Result{}
}

func (u *UnionResolver) Contains(name string) bool {
	for _, child := range u.children {
		if child.Contains(name) {
			return true
		}
	}
	return false
}

// Names yields every name once, in child order
func (u *UnionResolver) Names() iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})
		for _, child := range u.children {
			for name := range child.Names() {
				if _, dup := seen[name]; dup {
					continue
				}
				seen[name] = struct{}{}
				if !yield(name) {
					return
				}
			}
		}
	}
}

func (u *UnionResolver) Location(name string) (string, bool) {
	for _, child := range u.children {
		if loc, ok := child.Location(name); ok {
			return loc, true
		}
	}
	return "", false
}

// Locations lists every child serving name, in shadowing order
func (u *UnionResolver) Locations(name string) []string {
	var locations []string
	for _, child := range u.children {
		if loc, ok := child.Location(name); ok {
			locations = append(locations, loc)
		}
	}
	return locations
}

func (u *UnionResolver) IsEmpty() bool {
	for _, child := range u.children {
		if !child.IsEmpty() {
			return false
		}
	}
	return true
}

func (u *UnionResolver) Close() error {
	return nil
}

func (u *UnionResolver) String() string {
	parts := make([]string, len(u.children))
	for i, child := range u.children {
		parts[i] = child.String()
	}
	return "union[" + strings.Join(parts, ", ") + "]"
}
