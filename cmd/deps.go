package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jverify/internal/deps"
	"github.com/mabhi256/jverify/internal/report"
	"github.com/mabhi256/jverify/utils"
)

var depsManifests manifestFlags

var depsCmd = &cobra.Command{
	Use:   "deps [plugin.yaml...]",
	Short: "Print the dependency tree of plugins",
	Long: `Deps resolves the dependencies of each plugin against the host and prints the tree,
marking missing dependencies and cycles.

Examples:
  jverify deps -w workspace.yaml
  jverify deps --host ide.yaml --repository plugins/ plugin.yaml`,
	ValidArgsFunction: utils.CompleteFilesByExtension(".yaml", ".yml"),
	RunE:              runDeps,
}

func runDeps(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment(depsManifests, args)
	if err != nil {
		return err
	}
	defer env.Close()

	opts := []deps.Option{
		deps.WithCyclePolicy(conf.Policy()),
		deps.WithModuleFallbacks(conf.ModuleFallbacks),
		deps.WithProvider(env.provider),
		deps.WithLogger(logger),
	}
	if conf.DefaultModules != nil {
		opts = append(opts, deps.WithDefaultModules(conf.DefaultModules...))
	}
	builder := deps.NewBuilder(env.host, opts...)

	w := cmd.OutOrStdout()
	failed := false
	for i, p := range env.plugins {
		if i > 0 {
			fmt.Fprintln(w)
		}
		g, err := builder.Build(cmd.Context(), p)

		var cycle *deps.CycleError
		switch {
		case errors.As(err, &cycle):
			fmt.Fprintf(w, "%s %s %s\n", utils.GetSeverityIcon("failed"), p, utils.CriticalStyle.Render(cycle.Error()))
			failed = true
			continue
		case g == nil:
			return err
		}
		report.PrintGraph(w, g)
		failed = failed || err != nil
	}

	if failed {
		return errProblemsFound
	}
	return nil
}

func init() {
	depsManifests.register(depsCmd)
	rootCmd.AddCommand(depsCmd)
}
