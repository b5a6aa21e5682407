// Package config consolidates jverify settings from defaults, a JSON file, the
// environment and command line flags, in that order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"

	"github.com/mabhi256/jverify/internal/deps"
	"github.com/mabhi256/jverify/internal/resolver"
)

type Config struct {
	CacheSize   null.Int    `json:"cacheSize" envconfig:"JVERIFY_CACHE_SIZE"`
	Workers     null.Int    `json:"workers" envconfig:"JVERIFY_WORKERS"`
	QueueSize   null.Int    `json:"queueSize" envconfig:"JVERIFY_QUEUE_SIZE"`
	CyclePolicy null.String `json:"cyclePolicy" envconfig:"JVERIFY_CYCLE_POLICY"`
	Advisories  null.Bool   `json:"advisories" envconfig:"JVERIFY_ADVISORIES"`

	JDKHome    null.String `json:"jdkHome" envconfig:"JVERIFY_JDK_HOME"`
	Classpath  []string    `json:"classpath" envconfig:"JVERIFY_CLASSPATH"`
	Repository null.String `json:"repository" envconfig:"JVERIFY_REPOSITORY"`

	DefaultModules  []string          `json:"defaultModules" envconfig:"JVERIFY_DEFAULT_MODULES"`
	ModuleFallbacks map[string]string `json:"moduleFallbacks" envconfig:"JVERIFY_MODULE_FALLBACKS"`

	LogLevel  null.String `json:"logLevel" envconfig:"JVERIFY_LOG_LEVEL"`
	LogFormat null.String `json:"logFormat" envconfig:"JVERIFY_LOG_FORMAT"`
	Output    null.String `json:"output" envconfig:"JVERIFY_OUTPUT"`
	Store     null.String `json:"store" envconfig:"JVERIFY_STORE"`
}

// NewConfig returns the defaults. None of them count as explicitly set.
func NewConfig() Config {
	return Config{
		CacheSize:   null.NewInt(resolver.DefaultCacheSize, false),
		Workers:     null.NewInt(int64(runtime.GOMAXPROCS(0)), false),
		CyclePolicy: null.NewString(deps.TolerateCycles.String(), false),
		Advisories:  null.NewBool(true, false),
		LogLevel:    null.NewString("info", false),
		LogFormat:   null.NewString("text", false),
		Output:      null.NewString("cli", false),
	}
}

// Apply overlays every value that is set in cfg
func (c Config) Apply(cfg Config) Config {
	if cfg.CacheSize.Valid {
		c.CacheSize = cfg.CacheSize
	}
	if cfg.Workers.Valid {
		c.Workers = cfg.Workers
	}
	if cfg.QueueSize.Valid {
		c.QueueSize = cfg.QueueSize
	}
	if cfg.CyclePolicy.Valid {
		c.CyclePolicy = cfg.CyclePolicy
	}
	if cfg.Advisories.Valid {
		c.Advisories = cfg.Advisories
	}
	if cfg.JDKHome.Valid {
		c.JDKHome = cfg.JDKHome
	}
	if cfg.Classpath != nil {
		c.Classpath = slices.Clone(cfg.Classpath)
	}
	if cfg.Repository.Valid {
		c.Repository = cfg.Repository
	}
	if cfg.DefaultModules != nil {
		c.DefaultModules = slices.Clone(cfg.DefaultModules)
	}
	if len(cfg.ModuleFallbacks) > 0 {
		merged := make(map[string]string, len(c.ModuleFallbacks)+len(cfg.ModuleFallbacks))
		for k, v := range c.ModuleFallbacks {
			merged[k] = v
		}
		for k, v := range cfg.ModuleFallbacks {
			merged[k] = v
		}
		c.ModuleFallbacks = merged
	}
	if cfg.LogLevel.Valid {
		c.LogLevel = cfg.LogLevel
	}
	if cfg.LogFormat.Valid {
		c.LogFormat = cfg.LogFormat
	}
	if cfg.Output.Valid {
		c.Output = cfg.Output
	}
	if cfg.Store.Valid {
		c.Store = cfg.Store
	}
	return c
}

// ReadFile parses a JSON config file. A missing file yields an empty config.
func ReadFile(fs afero.Fs, path string) (Config, error) {
	var conf Config
	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return conf, nil
	}
	if err != nil {
		return conf, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return conf, nil
}

// FromEnv reads JVERIFY_* variables through lookup, os.LookupEnv when nil
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var conf Config
	if err := envconfig.Process("", &conf, lookup); err != nil {
		return conf, fmt.Errorf("failed to read environment: %w", err)
	}
	return conf, nil
}

// Consolidate layers defaults, the config file, the environment and flags
func Consolidate(fs afero.Fs, path string, lookup func(string) (string, bool), flags Config) (Config, error) {
	result := NewConfig()

	if path != "" {
		fileConf, err := ReadFile(fs, path)
		if err != nil {
			return result, err
		}
		result = result.Apply(fileConf)
	}

	envConf, err := FromEnv(lookup)
	if err != nil {
		return result, err
	}
	result = result.Apply(envConf).Apply(flags)

	return result, result.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.CacheSize.Int64 < 0 {
		errs = append(errs, fmt.Errorf("cache size must not be negative, got %d", c.CacheSize.Int64))
	}
	if c.Workers.Int64 < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers.Int64))
	}
	if c.QueueSize.Valid && c.QueueSize.Int64 < 1 {
		errs = append(errs, fmt.Errorf("queue size must be positive, got %d", c.QueueSize.Int64))
	}
	if _, err := deps.ParseCyclePolicy(c.CyclePolicy.String); err != nil {
		errs = append(errs, err)
	}
	switch c.Output.String {
	case "cli", "json", "tui":
	default:
		errs = append(errs, fmt.Errorf("unsupported output format %q, expected cli, json or tui", c.Output.String))
	}
	return errors.Join(errs...)
}

// Queue returns the work queue capacity, twice the workers unless set
func (c Config) Queue() int {
	if c.QueueSize.Valid {
		return int(c.QueueSize.Int64)
	}
	return 2 * int(c.Workers.Int64)
}

func (c Config) Policy() deps.CyclePolicy {
	p, _ := deps.ParseCyclePolicy(c.CyclePolicy.String)
	return p
}

// FlagSet declares the flags FromFlags reads
func FlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.Int("workers", runtime.GOMAXPROCS(0), "plugins verified in parallel")
	flags.Int("queue-size", 0, "pending plugins buffered ahead of the workers (default 2×workers)")
	flags.Int("cache-size", resolver.DefaultCacheSize, "classes cached per shared host resolver")
	flags.Bool("fail-on-cycle", false, "treat dependency cycles as fatal")
	flags.Bool("no-advisories", false, "skip deprecated, experimental, internal and override-only reports")
	flags.String("jdk", "", "JDK home providing runtime classes")
	flags.StringSlice("classpath", nil, "extra class roots searched after the host and runtime")
	flags.String("repository", "", "directory of plugin manifests used to fetch missing dependencies")
	flags.StringP("output", "o", "cli", "output format: cli, json or tui")
	flags.String("store", "", "SQLite database recording verification runs")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text, json or raw")
	return flags
}

// FromFlags reads the flags of FlagSet; only flags changed on the command line are set
func FromFlags(flags *pflag.FlagSet) (Config, error) {
	var conf Config
	var err error
	getInt := func(name string) null.Int {
		v, e := flags.GetInt(name)
		err = errors.Join(err, e)
		return null.NewInt(int64(v), flags.Changed(name))
	}
	getString := func(name string) null.String {
		v, e := flags.GetString(name)
		err = errors.Join(err, e)
		return null.NewString(v, flags.Changed(name))
	}

	conf.Workers = getInt("workers")
	conf.QueueSize = getInt("queue-size")
	conf.CacheSize = getInt("cache-size")
	conf.JDKHome = getString("jdk")
	conf.Repository = getString("repository")
	conf.Output = getString("output")
	conf.Store = getString("store")
	conf.LogLevel = getString("log-level")
	conf.LogFormat = getString("log-format")

	if flags.Changed("fail-on-cycle") {
		failOnCycle, e := flags.GetBool("fail-on-cycle")
		err = errors.Join(err, e)
		policy := deps.TolerateCycles
		if failOnCycle {
			policy = deps.FailOnCycle
		}
		conf.CyclePolicy = null.StringFrom(policy.String())
	}
	if flags.Changed("no-advisories") {
		skip, e := flags.GetBool("no-advisories")
		err = errors.Join(err, e)
		conf.Advisories = null.BoolFrom(!skip)
	}
	if flags.Changed("classpath") {
		classpath, e := flags.GetStringSlice("classpath")
		err = errors.Join(err, e)
		conf.Classpath = classpath
	}
	return conf, err
}
