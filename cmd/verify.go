package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jverify/internal/pipeline"
	"github.com/mabhi256/jverify/internal/report"
	"github.com/mabhi256/jverify/internal/store"
	"github.com/mabhi256/jverify/internal/tui"
	"github.com/mabhi256/jverify/utils"
)

var (
	verifyManifests manifestFlags
	keepRuns        int
)

var verifyCmd = &cobra.Command{
	Use:   "verify [plugin.yaml...]",
	Short: "Verify plugins against a host",
	Long: `Verify resolves each plugin's dependencies and checks every class it ships against
the host, its dependencies, the JDK and the extra classpath.

Plugins come from the workspace manifest and from the arguments.

Examples:
  jverify verify -w workspace.yaml
  jverify verify --host ide.yaml --jdk $JAVA_HOME plugin.yaml
  jverify verify -w workspace.yaml -o json --store runs.db`,
	ValidArgsFunction: utils.CompleteFilesByExtension(".yaml", ".yml"),
	RunE:              runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment(verifyManifests, args)
	if err != nil {
		return err
	}
	defer env.Close()

	if len(env.plugins) == 0 {
		return errors.New("no plugins to verify")
	}

	opts := pipeline.Options{
		Workers:         int(conf.Workers.Int64),
		QueueSize:       conf.Queue(),
		CacheSize:       int(conf.CacheSize.Int64),
		CyclePolicy:     conf.Policy(),
		DefaultModules:  conf.DefaultModules,
		ModuleFallbacks: conf.ModuleFallbacks,
		SkipAdvisories:  !conf.Advisories.Bool,
		Runtime:         env.runtime,
		External:        env.external,
		Provider:        env.provider,
		Logger:          logger,
	}
	if conf.Store.String != "" {
		db, err := store.Open(conf.Store.String)
		if err != nil {
			return err
		}
		defer db.Close()
		opts.Recorder = db

		if keepRuns > 0 {
			defer func() {
				pruned, err := db.Prune(context.Background(), keepRuns)
				if err != nil {
					logger.WithError(err).Warn("Failed to prune stored runs")
					return
				}
				logger.WithField("runs", pruned).Debug("Pruned stored runs")
			}()
		}
	}

	tasks := make([]pipeline.Task, len(env.plugins))
	for i, p := range env.plugins {
		tasks[i] = pipeline.Task{Plugin: p, Host: env.host}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcomes, err := pipeline.NewRunner(opts).Run(ctx, tasks)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if conf.Output.String == "tui" {
		if err := tui.Run(outcomes); err != nil {
			return err
		}
	} else if err := report.Print(cmd.OutOrStdout(), outcomes, conf.Output.String); err != nil {
		return err
	}

	for _, o := range outcomes {
		if o.Failed() {
			return errProblemsFound
		}
	}
	return nil
}

func init() {
	verifyManifests.register(verifyCmd)
	verifyCmd.Flags().IntVar(&keepRuns, "keep-runs", 0, "runs kept per plugin and host in the store, all when 0")
	rootCmd.AddCommand(verifyCmd)
}
