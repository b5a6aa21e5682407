package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mabhi256/jverify/internal/manifest"
	"github.com/mabhi256/jverify/internal/plugin"
	"github.com/mabhi256/jverify/internal/resolver"
	"github.com/mabhi256/jverify/utils"
)

// manifestFlags name the manifests a command loads
type manifestFlags struct {
	workspace string
	host      string
}

func (f *manifestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.workspace, "workspace", "w", "", "workspace manifest naming a host and plugins")
	cmd.Flags().StringVar(&f.host, "host", "", "host manifest, overrides the workspace host")
	cmd.RegisterFlagCompletionFunc("workspace", utils.CompleteFilesByExtension(".yaml", ".yml"))
	cmd.RegisterFlagCompletionFunc("host", utils.CompleteFilesByExtension(".yaml", ".yml"))
	cmd.MarkFlagsOneRequired("workspace", "host")
}

/*
environment is everything a command opened from manifests and configuration.
Settings from the configuration win over the workspace's. Close releases
every opened class root.
*/
type environment struct {
	host     *plugin.Host
	plugins  []*plugin.Plugin
	runtime  resolver.Resolver
	external resolver.Resolver
	provider plugin.Provider

	owner resolver.Closer
	repo  *manifest.Repository
}

func openEnvironment(flags manifestFlags, pluginPaths []string) (env *environment, err error) {
	fs := afero.NewOsFs()
	env = &environment{}
	defer func() {
		if err != nil {
			env.Close()
			env = nil
		}
	}()

	hostPath := flags.host
	repository := conf.Repository.String
	jdk := conf.JDKHome.String
	classpath := conf.Classpath

	if flags.workspace != "" {
		ws, err := manifest.ReadWorkspace(fs, flags.workspace)
		if err != nil {
			return env, err
		}
		if hostPath == "" {
			hostPath = ws.HostPath()
		}
		pluginPaths = append(ws.PluginPaths(), pluginPaths...)
		if !conf.Repository.Valid {
			repository = ws.RepositoryPath()
		}
		if !conf.JDKHome.Valid {
			jdk = ws.JDKPath()
		}
		classpath = append(ws.ClasspathPaths(), classpath...)
	}

	hostManifest, err := manifest.ReadHost(fs, hostPath)
	if err != nil {
		return env, err
	}
	if env.host, err = hostManifest.Open(&env.owner); err != nil {
		return env, err
	}

	var errs []error
	for _, path := range pluginPaths {
		m, err := manifest.ReadPlugin(fs, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p, err := m.Open(&env.owner)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		env.plugins = append(env.plugins, p)
	}
	if err := errors.Join(errs...); err != nil {
		return env, err
	}

	if jdk != "" {
		runtime, err := resolver.OpenJdk(jdk)
		if err != nil {
			return env, fmt.Errorf("failed to open JDK: %w", err)
		}
		env.runtime = env.owner.Add(runtime)
	}
	if len(classpath) > 0 {
		external, err := resolver.OpenPaths(classpath...)
		if err != nil {
			return env, fmt.Errorf("failed to open classpath: %w", err)
		}
		env.external = env.owner.Add(external)
	}

	// plugins loaded together can depend on each other
	providers := plugin.MultiProvider{plugin.NewStaticProvider(env.plugins...)}
	if repository != "" {
		env.repo = manifest.NewRepository(fs, repository, logger)
		providers = append(providers, env.repo)
	}
	env.provider = providers

	logger.WithField("host", env.host.Version()).
		WithField("plugins", len(env.plugins)).
		Debug("Environment opened")
	return env, nil
}

func (e *environment) Close() error {
	var errs []error
	if e.repo != nil {
		errs = append(errs, e.repo.Close())
	}
	errs = append(errs, e.owner.Close())
	return errors.Join(errs...)
}
