package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/mabhi256/jverify/internal/logging"
	"github.com/mabhi256/jverify/internal/plugin"
	"github.com/mabhi256/jverify/internal/resolver"
)

// ManifestName is the file a repository expects in each plugin directory
const ManifestName = "plugin.yaml"

/*
Repository serves plugins from a directory laid out as <dir>/<id>/plugin.yaml.

Opened plugins are kept until Close, so each plugin's class roots are opened
once however many hosts ask for it. Plugins whose compatibility range excludes
the requested host are reported as not found.
*/
type Repository struct {
	fs     afero.Fs
	dir    string
	logger logrus.FieldLogger

	mu     sync.Mutex
	opened map[string]*opened
	group  singleflight.Group
	closer resolver.Closer
}

type opened struct {
	manifest *Plugin
	plugin   *plugin.Plugin
}

func NewRepository(fs afero.Fs, dir string, logger logrus.FieldLogger) *Repository {
	return &Repository{
		fs:     fs,
		dir:    dir,
		logger: logging.OrDiscard(logger).WithField("repository", dir),
		opened: make(map[string]*opened),
	}
}

func (r *Repository) Fetch(ctx context.Context, hostVersion, pluginID string) (*plugin.Plugin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, err, _ := r.group.Do(pluginID, func() (any, error) {
		return r.open(pluginID)
	})
	if err != nil {
		return nil, err
	}

	o := v.(*opened)
	if !o.manifest.Compatibility.Supports(hostVersion) {
		r.logger.WithFields(logrus.Fields{
			"plugin": pluginID,
			"since":  o.manifest.Compatibility.Since,
			"until":  o.manifest.Compatibility.Until,
		}).Debugf("Plugin does not support host %s", hostVersion)
		return nil, fmt.Errorf("%s is not compatible with %s: %w", pluginID, hostVersion, plugin.ErrPluginNotFound)
	}
	return o.plugin, nil
}

func (r *Repository) open(pluginID string) (*opened, error) {
	r.mu.Lock()
	o, ok := r.opened[pluginID]
	r.mu.Unlock()
	if ok {
		return o, nil
	}

	if strings.ContainsAny(pluginID, `/\`) || pluginID == "." || pluginID == ".." {
		return nil, fmt.Errorf("invalid plugin id %q: %w", pluginID, plugin.ErrPluginNotFound)
	}
	path := filepath.Join(r.dir, pluginID, ManifestName)
	m, err := ReadPlugin(r.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", pluginID, plugin.ErrPluginNotFound)
	}
	if err != nil {
		return nil, err
	}
	if m.ID != pluginID {
		return nil, fmt.Errorf("manifest %s declares plugin %s", path, m.ID)
	}

	p, err := m.Open(&r.closer)
	if err != nil {
		return nil, err
	}
	r.logger.WithField("plugin", p.String()).Debug("Opened repository plugin")

	o = &opened{manifest: m, plugin: p}
	r.mu.Lock()
	r.opened[pluginID] = o
	r.mu.Unlock()
	return o, nil
}

// Close releases the class roots of every opened plugin
func (r *Repository) Close() error {
	r.mu.Lock()
	clear(r.opened)
	r.mu.Unlock()
	return r.closer.Close()
}

// CompareBuilds orders dotted build numbers such as "233.11799.241".
// A "*" component matches anything and compares as the largest value.
func CompareBuilds(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < max(len(as), len(bs)); i++ {
		x, y := component(as, i), component(bs, i)
		if x == "*" || y == "*" {
			return 0
		}
		xn, xerr := strconv.Atoi(x)
		yn, yerr := strconv.Atoi(y)
		switch {
		case xerr == nil && yerr == nil:
			if xn != yn {
				return cmpInt(xn, yn)
			}
		case x != y:
			return strings.Compare(x, y)
		}
	}
	return 0
}

func component(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return "0"
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	return 1
}
