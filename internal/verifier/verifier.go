// Package verifier re-derives the linkage decisions a JVM makes when loading a
// plugin's classes and reports every one that would fail as a problem.
package verifier

import (
	"context"
	"runtime"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mabhi256/jverify/internal/logging"
	"github.com/mabhi256/jverify/internal/problem"
	"github.com/mabhi256/jverify/internal/resolver"
)

type Options struct {
	// Workers bounds the classes checked in parallel, GOMAXPROCS when zero
	Workers int
	// SkipAdvisories turns off deprecated, experimental, internal and override-only reports
	SkipAdvisories bool
	Logger         logrus.FieldLogger
}

// Input is the symbol space of one verification. Lookups try Plugin, then each
// of Dependencies in order, then Classpath.
type Input struct {
	Plugin       resolver.Resolver
	Dependencies []resolver.Resolver
	// Classpath serves host, runtime and external classes
	Classpath resolver.Resolver
}

type Result struct {
	Problems *problem.List
	Classes  int
	Duration time.Duration
}

type Verifier struct {
	opts   Options
	logger logrus.FieldLogger
}

func New(opts Options) *Verifier {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Verifier{
		opts:   opts,
		logger: logging.OrDiscard(opts.Logger).WithField("component", "verifier"),
	}
}

/*
Verify checks every class of in.Plugin in name order.

Classes are checked concurrently and their problems merged in name order, so the
result does not depend on scheduling. The context is only consulted before the
scan starts: a started scan always runs to completion.
*/
func (v *Verifier) Verify(ctx context.Context, in Input) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	layers := append([]resolver.Resolver{in.Plugin}, in.Dependencies...)
	env := resolver.Union(append(layers, in.Classpath)...)
	h := newHierarchy(env)

	names := slices.Sorted(in.Plugin.Names())
	found := make([][]problem.Problem, len(names))

	var g errgroup.Group
	g.SetLimit(v.opts.Workers)
	for i, name := range names {
		g.Go(func() error {
			found[i] = v.checkClass(h, in, name)
			return nil
		})
	}
	_ = g.Wait()

	problems := problem.NewList()
	for _, p := range found {
		problems.Add(p...)
	}

	result := &Result{Problems: problems, Classes: len(names), Duration: time.Since(start)}
	v.logger.WithFields(logrus.Fields{
		"classes":  result.Classes,
		"problems": problems.Len(),
		"duration": result.Duration,
	}).Debug("Verified plugin classes")
	return result, nil
}

func (v *Verifier) checkClass(h *hierarchy, in Input, name string) []problem.Problem {
	res := in.Plugin.Find(name)
	h.seed(name, res)
	if res.Err != nil {
		found := []problem.Problem{problem.New(problem.FailedToReadClass,
			problem.Location{Class: name}, name, "%v", res.Err)}
		if p, ok := duplicate(in, name); ok {
			found = append(found, p)
		}
		return found
	}
	if res.Class == nil {
		return nil
	}

	c := &checker{
		h:          h,
		in:         in,
		class:      res.Class,
		complete:   h.isComplete(res.Class),
		advisories: !v.opts.SkipAdvisories,
	}
	c.checkSuperclass()
	c.checkInterfaces()
	c.checkFinalSuperclass()
	c.checkAbstractCoverage()
	c.checkMemberTypes()
	c.checkFinalOverrides()
	c.checkMethodCalls()
	c.checkFieldAccess()
	c.checkTypeInstructions()
	c.checkDynamicCallSites()
	c.checkDuplicate()
	return append(c.problems, c.advised...)
}
