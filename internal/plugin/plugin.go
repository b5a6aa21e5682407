// Package plugin holds the immutable plugin and host values fed into dependency
// resolution and verification.
package plugin

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mabhi256/jverify/internal/resolver"
)

// Dependency is one declared dependency of a plugin
type Dependency struct {
	ID       string
	Optional bool
	// Module marks a platform module (com.intellij.modules.*) rather than a plugin id
	Module bool
}

func (d Dependency) String() string {
	s := d.ID
	if d.Module {
		s = "module " + s
	}
	if d.Optional {
		s += " (optional)"
	}
	return s
}

// Plugin is a verified-against-host unit: its own classes plus declared dependencies
type Plugin struct {
	id           string
	version      string
	dependencies []Dependency
	modules      []string
	classes      resolver.Resolver
	source       string
}

func (p *Plugin) ID() string      { return p.id }
func (p *Plugin) Version() string { return p.version }

// Dependencies returns plugin dependencies and module dependencies in declaration order
func (p *Plugin) Dependencies() []Dependency {
	return slices.Clone(p.dependencies)
}

// DefinedModules lists the platform modules this plugin provides
func (p *Plugin) DefinedModules() []string {
	return slices.Clone(p.modules)
}

func (p *Plugin) DefinesModule(module string) bool {
	return slices.Contains(p.modules, module)
}

// Classes serves the plugin's own classes
func (p *Plugin) Classes() resolver.Resolver {
	return p.classes
}

// Source is where the plugin was loaded from, for diagnostics
func (p *Plugin) Source() string {
	return p.source
}

func (p *Plugin) String() string {
	if p.version == "" {
		return p.id
	}
	return p.id + ":" + p.version
}

// Builder assembles a Plugin. Build may be called once.
type Builder struct {
	p    Plugin
	errs []error
}

func NewBuilder(id string) *Builder {
	return &Builder{p: Plugin{id: id, classes: resolver.Empty()}}
}

func (b *Builder) Version(version string) *Builder {
	b.p.version = version
	return b
}

// Depends declares a mandatory plugin dependency
func (b *Builder) Depends(id string) *Builder {
	return b.Dependency(Dependency{ID: id})
}

// DependsOptional declares an optional plugin dependency
func (b *Builder) DependsOptional(id string) *Builder {
	return b.Dependency(Dependency{ID: id, Optional: true})
}

// DependsOnModule declares a platform module dependency
func (b *Builder) DependsOnModule(module string, optional bool) *Builder {
	return b.Dependency(Dependency{ID: module, Optional: optional, Module: true})
}

// Dependency adds d. Redeclaring a dependency keeps the first position;
// a mandatory declaration wins over an optional one.
func (b *Builder) Dependency(d Dependency) *Builder {
	if d.ID == "" {
		b.errs = append(b.errs, errors.New("dependency with empty id"))
		return b
	}
	if d.ID == b.p.id && !d.Module {
		b.errs = append(b.errs, fmt.Errorf("plugin %s depends on itself", d.ID))
		return b
	}
	for i, existing := range b.p.dependencies {
		if existing.ID == d.ID && existing.Module == d.Module {
			b.p.dependencies[i].Optional = existing.Optional && d.Optional
			return b
		}
	}
	b.p.dependencies = append(b.p.dependencies, d)
	return b
}

func (b *Builder) DefinesModule(modules ...string) *Builder {
	for _, m := range modules {
		if !slices.Contains(b.p.modules, m) {
			b.p.modules = append(b.p.modules, m)
		}
	}
	return b
}

func (b *Builder) Classes(r resolver.Resolver) *Builder {
	if r == nil {
		r = resolver.Empty()
	}
	b.p.classes = r
	return b
}

func (b *Builder) Source(source string) *Builder {
	b.p.source = source
	return b
}

func (b *Builder) Build() (*Plugin, error) {
	if b.p.id == "" {
		b.errs = append(b.errs, errors.New("plugin id is empty"))
	}
	if err := errors.Join(b.errs...); err != nil {
		return nil, fmt.Errorf("invalid plugin %q: %w", b.p.id, err)
	}
	p := b.p
	p.dependencies = slices.Clone(b.p.dependencies)
	p.modules = slices.Clone(b.p.modules)
	return &p, nil
}

// MustBuild is Build for tests and static definitions
func (b *Builder) MustBuild() *Plugin {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}
