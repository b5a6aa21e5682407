// Package manifest reads the YAML files describing hosts, plugins and
// workspaces, and opens them as plugin.Host and plugin.Plugin values.
package manifest

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/mabhi256/jverify/internal/plugin"
	"github.com/mabhi256/jverify/internal/resolver"
)

// Dependency is one entry of a plugin's depends list. A bare string is a
// mandatory plugin dependency.
type Dependency struct {
	ID       string `yaml:"id"`
	Optional bool   `yaml:"optional,omitempty"`
	Module   bool   `yaml:"module,omitempty"`
}

func (d *Dependency) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&d.ID)
	}
	type plain Dependency
	return node.Decode((*plain)(d))
}

// Compatibility bounds the host builds a plugin supports; empty means unbounded
type Compatibility struct {
	Since string `yaml:"since,omitempty"`
	Until string `yaml:"until,omitempty"`
}

// Supports reports whether the host build lies within the bounds
func (c Compatibility) Supports(build string) bool {
	if c.Since != "" && CompareBuilds(build, c.Since) < 0 {
		return false
	}
	if c.Until != "" && CompareBuilds(build, c.Until) > 0 {
		return false
	}
	return true
}

type Plugin struct {
	ID            string        `yaml:"id"`
	Version       string        `yaml:"version,omitempty"`
	Depends       []Dependency  `yaml:"depends,omitempty"`
	Modules       []string      `yaml:"modules,omitempty"`
	Classes       []string      `yaml:"classes,omitempty"`
	Compatibility Compatibility `yaml:"compatibility,omitempty"`

	dir string
}

type Host struct {
	Version string   `yaml:"version"`
	Classes []string `yaml:"classes,omitempty"`
	Plugins []Plugin `yaml:"plugins,omitempty"`

	dir string
}

// Workspace names a host and the plugins to verify against it
type Workspace struct {
	Host       string   `yaml:"host"`
	Plugins    []string `yaml:"plugins"`
	Repository string   `yaml:"repository,omitempty"`
	JDK        string   `yaml:"jdk,omitempty"`
	Classpath  []string `yaml:"classpath,omitempty"`

	dir string
}

func read(fs afero.Fs, path string, into any) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return nil
}

func ReadPlugin(fs afero.Fs, path string) (*Plugin, error) {
	var m Plugin
	if err := read(fs, path, &m); err != nil {
		return nil, err
	}
	m.dir = filepath.Dir(path)
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid plugin manifest %s: %w", path, err)
	}
	return &m, nil
}

func ReadHost(fs afero.Fs, path string) (*Host, error) {
	var m Host
	if err := read(fs, path, &m); err != nil {
		return nil, err
	}
	m.dir = filepath.Dir(path)

	var errs []error
	if m.Version == "" {
		errs = append(errs, errors.New("version is required"))
	}
	for i := range m.Plugins {
		m.Plugins[i].dir = m.dir
		if err := m.Plugins[i].validate(); err != nil {
			errs = append(errs, fmt.Errorf("bundled plugin %d: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid host manifest %s: %w", path, err)
	}
	return &m, nil
}

func ReadWorkspace(fs afero.Fs, path string) (*Workspace, error) {
	var m Workspace
	if err := read(fs, path, &m); err != nil {
		return nil, err
	}
	m.dir = filepath.Dir(path)
	if m.Host == "" {
		return nil, fmt.Errorf("invalid workspace %s: host is required", path)
	}
	return &m, nil
}

func (m *Plugin) validate() error {
	var errs []error
	if m.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	for i, d := range m.Depends {
		if d.ID == "" {
			errs = append(errs, fmt.Errorf("dependency %d has no id", i))
		}
	}
	return errors.Join(errs...)
}

// HostPath resolves the host manifest against the workspace file
func (w *Workspace) HostPath() string { return resolvePath(w.dir, w.Host) }

func (w *Workspace) PluginPaths() []string { return resolvePaths(w.dir, w.Plugins) }

// RepositoryPath is "" when the workspace names no repository
func (w *Workspace) RepositoryPath() string {
	if w.Repository == "" {
		return ""
	}
	return resolvePath(w.dir, w.Repository)
}

func (w *Workspace) JDKPath() string {
	if w.JDK == "" {
		return ""
	}
	return resolvePath(w.dir, w.JDK)
}

func (w *Workspace) ClasspathPaths() []string { return resolvePaths(w.dir, w.Classpath) }

// ClassPaths are the plugin's class roots resolved against its manifest
func (m *Plugin) ClassPaths() []string { return resolvePaths(m.dir, m.Classes) }

func (m *Host) ClassPaths() []string { return resolvePaths(m.dir, m.Classes) }

/*
Open builds the plugin and opens its class roots. Opened resolvers are
registered with owner, which the caller closes once the plugin is no longer
used.
*/
func (m *Plugin) Open(owner *resolver.Closer) (*plugin.Plugin, error) {
	b := plugin.NewBuilder(m.ID).
		Version(m.Version).
		DefinesModule(m.Modules...).
		Source(m.dir)
	for _, d := range m.Depends {
		b.Dependency(plugin.Dependency{ID: d.ID, Optional: d.Optional, Module: d.Module})
	}

	if paths := m.ClassPaths(); len(paths) > 0 {
		classes, err := resolver.OpenPaths(paths...)
		if err != nil {
			return nil, fmt.Errorf("failed to open classes of plugin %s: %w", m.ID, err)
		}
		b.Classes(owner.Add(classes))
	}
	return b.Build()
}

// Open builds the host with its bundled plugins; see Plugin.Open
func (m *Host) Open(owner *resolver.Closer) (*plugin.Host, error) {
	b := plugin.NewHostBuilder(m.Version)
	if paths := m.ClassPaths(); len(paths) > 0 {
		classes, err := resolver.OpenPaths(paths...)
		if err != nil {
			return nil, fmt.Errorf("failed to open classes of host %s: %w", m.Version, err)
		}
		b.Classes(owner.Add(classes))
	}
	for i := range m.Plugins {
		p, err := m.Plugins[i].Open(owner)
		if err != nil {
			return nil, err
		}
		b.Bundle(p)
	}
	return b.Build()
}

func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func resolvePaths(dir string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, resolvePath(dir, p))
	}
	return out
}
