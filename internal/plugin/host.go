package plugin

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mabhi256/jverify/internal/resolver"
)

// Host is an IDE build: its platform classes and the plugins bundled with it
type Host struct {
	version  string
	classes  resolver.Resolver
	plugins  []*Plugin
	byID     map[string]*Plugin
	byModule map[string]*Plugin
}

func (h *Host) Version() string { return h.version }

// Classes serves the platform's own classes (lib/*.jar), excluding bundled plugins
func (h *Host) Classes() resolver.Resolver { return h.classes }

func (h *Host) Plugins() []*Plugin {
	return slices.Clone(h.plugins)
}

func (h *Host) FindPluginByID(id string) (*Plugin, bool) {
	p, ok := h.byID[id]
	return p, ok
}

// FindPluginByModule returns the bundled plugin that defines module
func (h *Host) FindPluginByModule(module string) (*Plugin, bool) {
	p, ok := h.byModule[module]
	return p, ok
}

func (h *Host) String() string {
	return "host " + h.version
}

type HostBuilder struct {
	h    Host
	errs []error
}

func NewHostBuilder(version string) *HostBuilder {
	return &HostBuilder{h: Host{
		version:  version,
		classes:  resolver.Empty(),
		byID:     make(map[string]*Plugin),
		byModule: make(map[string]*Plugin),
	}}
}

func (b *HostBuilder) Classes(r resolver.Resolver) *HostBuilder {
	if r == nil {
		r = resolver.Empty()
	}
	b.h.classes = r
	return b
}

// Bundle registers plugins shipped with the host. The first plugin defining a module owns it.
func (b *HostBuilder) Bundle(plugins ...*Plugin) *HostBuilder {
	for _, p := range plugins {
		if _, dup := b.h.byID[p.ID()]; dup {
			b.errs = append(b.errs, fmt.Errorf("plugin %s is bundled twice", p.ID()))
			continue
		}
		b.h.plugins = append(b.h.plugins, p)
		b.h.byID[p.ID()] = p
		for _, m := range p.DefinedModules() {
			if _, taken := b.h.byModule[m]; !taken {
				b.h.byModule[m] = p
			}
		}
	}
	return b
}

func (b *HostBuilder) Build() (*Host, error) {
	if b.h.version == "" {
		b.errs = append(b.errs, errors.New("host version is empty"))
	}
	if err := errors.Join(b.errs...); err != nil {
		return nil, fmt.Errorf("invalid host: %w", err)
	}
	h := b.h
	return &h, nil
}

func (b *HostBuilder) MustBuild() *Host {
	h, err := b.Build()
	if err != nil {
		panic(err)
	}
	return h
}
