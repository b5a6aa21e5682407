package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jverify/internal/report"
	"github.com/mabhi256/jverify/internal/store"
)

var diffHostVersion string

var diffCmd = &cobra.Command{
	Use:   "diff <plugin-id>",
	Short: "Compare the last two stored runs of a plugin",
	Long: `Diff loads the two most recent runs of a plugin from the run store and lists the
problems the newer run introduced and the ones it resolved.

Examples:
  jverify diff com.acme.tools --store runs.db
  jverify diff com.acme.tools --store runs.db --host-version 233.1`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	if conf.Store.String == "" {
		return errors.New("diff needs a run store, set --store")
	}
	if conf.Output.String == "tui" {
		return errors.New("diff supports cli and json output")
	}

	db, err := store.Open(conf.Store.String)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	pluginID := args[0]
	runs, err := db.Latest(ctx, pluginID, diffHostVersion, 2)
	if err != nil {
		return err
	}
	if len(runs) < 2 {
		return fmt.Errorf("plugin %s has %d stored runs, diff needs two", pluginID, len(runs))
	}
	newer, older := runs[0], runs[1]

	newerProblems, err := db.Problems(ctx, newer.ID)
	if err != nil {
		return err
	}
	olderProblems, err := db.Problems(ctx, older.ID)
	if err != nil {
		return err
	}

	c := report.Compare(pluginID, newer.HostVersion, older.ID, newer.ID, olderProblems, newerProblems)
	if err := report.PrintDiff(cmd.OutOrStdout(), c, conf.Output.String); err != nil {
		return err
	}

	for _, p := range c.Introduced {
		if p.IsError() {
			return errProblemsFound
		}
	}
	return nil
}

func init() {
	diffCmd.Flags().StringVar(&diffHostVersion, "host-version", "", "only compare runs against this host version")
	rootCmd.AddCommand(diffCmd)
}
