// Package pipeline verifies batches of plugins against hosts on a bounded
// worker pool, sharing dependency graphs and class caches across the batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mabhi256/jverify/internal/deps"
	"github.com/mabhi256/jverify/internal/logging"
	"github.com/mabhi256/jverify/internal/plugin"
	"github.com/mabhi256/jverify/internal/problem"
	"github.com/mabhi256/jverify/internal/resolver"
	"github.com/mabhi256/jverify/internal/verifier"
)

// Task is one unit of work: a plugin verified against a host
type Task struct {
	Plugin *plugin.Plugin
	Host   *plugin.Host
}

func (t Task) String() string {
	return fmt.Sprintf("%s against %s", t.Plugin, t.Host)
}

type Outcome struct {
	Task     Task
	Problems *problem.List
	Graph    *deps.Graph
	// Err is set when the plugin could not be verified at all
	Err      error
	Classes  int
	Started  time.Time
	Duration time.Duration
}

// Failed reports a fatal error or any error-severity problem
func (o *Outcome) Failed() bool {
	return o.Err != nil || o.Problems.HasErrors()
}

// Recorder persists outcomes, e.g. the run store
type Recorder interface {
	Save(ctx context.Context, o *Outcome) (int64, error)
}

type Options struct {
	// Workers is the number of plugins verified at once, GOMAXPROCS when zero
	Workers int
	// QueueSize bounds tasks waiting for a worker, 2×Workers when zero
	QueueSize int
	// CacheSize is the class cache capacity of each shared host and dependency resolver
	CacheSize int

	CyclePolicy     deps.CyclePolicy
	DefaultModules  []string
	ModuleFallbacks map[string]string
	SkipAdvisories  bool

	// Runtime serves JDK classes, External any extra classpath; both may be nil
	Runtime  resolver.Resolver
	External resolver.Resolver
	Provider plugin.Provider
	Recorder Recorder
	Logger   logrus.FieldLogger
}

// maxSharedResolvers bounds the dependency plugins kept wrapped in class caches
const maxSharedResolvers = 256

/*
Runner owns the caches of one batch: dependency graphs per host, and a class
cache per host and per dependency plugin. A Runner is safe for concurrent use
and is discarded with its batch.
*/
type Runner struct {
	opts     Options
	logger   logrus.FieldLogger
	graphs   *deps.Cache
	verifier *verifier.Verifier

	mu       sync.Mutex
	builders map[string]*deps.Builder
	hosts    map[string]*resolver.Cache
	shared   *lru.Cache[string, *resolver.Cache]
}

func NewRunner(opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 2 * opts.Workers
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = resolver.DefaultCacheSize
	}
	logger := logging.OrDiscard(opts.Logger).WithField("component", "pipeline")
	shared, err := lru.New[string, *resolver.Cache](maxSharedResolvers)
	if err != nil {
		panic(fmt.Sprintf("pipeline: %v", err))
	}

	return &Runner{
		opts:   opts,
		logger: logger,
		graphs: deps.NewCache(),
		verifier: verifier.New(verifier.Options{
			// plugins already run in parallel
			Workers:        max(1, runtime.GOMAXPROCS(0)/opts.Workers),
			SkipAdvisories: opts.SkipAdvisories,
			Logger:         opts.Logger,
		}),
		builders: make(map[string]*deps.Builder),
		hosts:    make(map[string]*resolver.Cache),
		shared:   shared,
	}
}

/*
Run verifies every task and returns the outcomes in task order.

Tasks flow through a queue of Options.QueueSize into Options.Workers workers.
Cancelling ctx stops dispatching: plugins already being verified finish, and
every task not started gets an outcome carrying the context error. A failing
plugin never stops the batch; Run itself only returns ctx's error.
*/
func (r *Runner) Run(ctx context.Context, tasks []Task) ([]*Outcome, error) {
	outcomes := make([]*Outcome, len(tasks))
	queue := make(chan int, r.opts.QueueSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		for i := range tasks {
			select {
			case queue <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for range r.opts.Workers {
		g.Go(func() error {
			for i := range queue {
				if gctx.Err() != nil {
					continue
				}
				outcomes[i] = r.VerifyOne(gctx, tasks[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	skipped := 0
	for i, o := range outcomes {
		if o == nil {
			outcomes[i] = &Outcome{Task: tasks[i], Problems: problem.NewList(), Err: ctx.Err()}
			skipped++
		}
	}
	if skipped > 0 {
		r.logger.WithField("skipped", skipped).Warn("Batch cancelled before every plugin was verified")
	}

	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		}
	}
	r.logger.WithFields(logrus.Fields{
		"plugins": len(tasks),
		"failed":  failed,
	}).Info("Batch verified")
	return outcomes, ctx.Err()
}

// VerifyOne resolves the task's dependencies and verifies the plugin's classes
func (r *Runner) VerifyOne(ctx context.Context, task Task) *Outcome {
	o := &Outcome{Task: task, Problems: problem.NewList(), Started: time.Now()}
	log := r.logger.WithFields(logrus.Fields{
		"plugin": task.Plugin.String(),
		"host":   task.Host.Version(),
	})
	defer func() {
		o.Duration = time.Since(o.Started)
		r.record(ctx, o, log)
	}()

	graph, err := r.graphs.Build(ctx, r.builder(task.Host), task.Plugin)
	o.Graph = graph
	if err != nil {
		o.Err = err
		log.WithError(err).Warn("Plugin cannot be verified")
		return o
	}
	o.Problems.Add(graphProblems(graph)...)

	res, err := r.verifier.Verify(ctx, r.input(task, graph))
	if err != nil {
		o.Err = err
		return o
	}
	o.Problems.Merge(res.Problems)
	o.Classes = res.Classes

	log.WithFields(logrus.Fields{
		"classes":  o.Classes,
		"errors":   len(o.Problems.Errors()),
		"warnings": len(o.Problems.Warnings()),
	}).Debug("Plugin verified")
	return o
}

func (r *Runner) record(ctx context.Context, o *Outcome, log logrus.FieldLogger) {
	if r.opts.Recorder == nil || errors.Is(o.Err, context.Canceled) {
		return
	}
	if _, err := r.opts.Recorder.Save(context.WithoutCancel(ctx), o); err != nil {
		log.WithError(err).Error("Failed to record verification run")
	}
}

func (r *Runner) builder(host *plugin.Host) *deps.Builder {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.builders[host.Version()]; ok {
		return b
	}
	opts := []deps.Option{
		deps.WithCyclePolicy(r.opts.CyclePolicy),
		deps.WithModuleFallbacks(r.opts.ModuleFallbacks),
		deps.WithLogger(r.opts.Logger),
	}
	if r.opts.DefaultModules != nil {
		opts = append(opts, deps.WithDefaultModules(r.opts.DefaultModules...))
	}
	if r.opts.Provider != nil {
		opts = append(opts, deps.WithProvider(r.opts.Provider))
	}
	b := deps.NewBuilder(host, opts...)
	r.builders[host.Version()] = b
	return b
}

// input lays out the symbol space: plugin, dependencies in discovery order,
// host, runtime, external classpath
func (r *Runner) input(task Task, graph *deps.Graph) verifier.Input {
	var dependencies []resolver.Resolver
	for _, p := range graph.Transitive() {
		dependencies = append(dependencies, r.sharedClasses(task.Host, p))
	}

	classpath := []resolver.Resolver{r.hostClasses(task.Host)}
	if r.opts.Runtime != nil {
		classpath = append(classpath, r.opts.Runtime)
	}
	if r.opts.External != nil {
		classpath = append(classpath, r.opts.External)
	}
	return verifier.Input{
		Plugin:       task.Plugin.Classes(),
		Dependencies: dependencies,
		Classpath:    resolver.Union(classpath...),
	}
}

func (r *Runner) hostClasses(host *plugin.Host) resolver.Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.hosts[host.Version()]
	if !ok {
		c = resolver.NewCache(host.Classes(), r.opts.CacheSize)
		r.hosts[host.Version()] = c
	}
	return c
}

// sharedClasses caches the classes of a dependency plugin. Bundled plugins are
// keyed by host since two hosts may bundle different builds under one version.
func (r *Runner) sharedClasses(host *plugin.Host, p *plugin.Plugin) resolver.Resolver {
	key := "plugin:" + p.String()
	if bundled, ok := host.FindPluginByID(p.ID()); ok && bundled == p {
		key = "host:" + host.Version() + ":" + p.String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.shared.Get(key); ok && c.Delegate() == p.Classes() {
		return c
	}
	c := resolver.NewCache(p.Classes(), r.opts.CacheSize)
	r.shared.Add(key, c)
	return c
}

// graphProblems reports the root's unresolved optional dependencies and any
// tolerated cycle
func graphProblems(graph *deps.Graph) []problem.Problem {
	root := graph.Root()
	loc := problem.Location{Class: root.Plugin.ID()}

	var out []problem.Problem
	for _, m := range root.MissingOptional() {
		out = append(out, problem.New(problem.MissingOptionalDependency, loc, m.Dependency.ID,
			"optional dependency %s is not resolved: %s", m.Dependency, m.Reason))
	}
	for _, cycle := range graph.Cycles() {
		out = append(out, problem.New(problem.CyclicDependency, loc, cycle[0],
			"dependency cycle %s", deps.FormatCycle(cycle)))
	}
	return out
}
