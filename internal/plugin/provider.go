package plugin

import (
	"context"
	"errors"
	"fmt"
)

// ErrPluginNotFound is returned by providers that do not know the requested plugin
var ErrPluginNotFound = errors.New("plugin not found")

// Provider fetches plugins that are not bundled with the host, e.g. from a repository
type Provider interface {
	Fetch(ctx context.Context, hostVersion, pluginID string) (*Plugin, error)
}

type ProviderFunc func(ctx context.Context, hostVersion, pluginID string) (*Plugin, error)

func (f ProviderFunc) Fetch(ctx context.Context, hostVersion, pluginID string) (*Plugin, error) {
	return f(ctx, hostVersion, pluginID)
}

// MultiProvider asks each provider in turn until one knows the plugin.
// Errors other than ErrPluginNotFound stop the search.
type MultiProvider []Provider

func (m MultiProvider) Fetch(ctx context.Context, hostVersion, pluginID string) (*Plugin, error) {
	for _, p := range m {
		plugin, err := p.Fetch(ctx, hostVersion, pluginID)
		if err == nil {
			return plugin, nil
		}
		if !errors.Is(err, ErrPluginNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s for %s: %w", pluginID, hostVersion, ErrPluginNotFound)
}

// StaticProvider serves a fixed set of plugins regardless of host version
type StaticProvider map[string]*Plugin

func NewStaticProvider(plugins ...*Plugin) StaticProvider {
	s := make(StaticProvider, len(plugins))
	for _, p := range plugins {
		s[p.ID()] = p
	}
	return s
}

func (s StaticProvider) Fetch(ctx context.Context, _, pluginID string) (*Plugin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p, ok := s[pluginID]; ok {
		return p, nil
	}
	return nil, ErrPluginNotFound
}
