package cmd

import (
	"cmp"
	"errors"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jverify/internal/report"
	"github.com/mabhi256/jverify/internal/resolver"
	"github.com/mabhi256/jverify/utils"
)

var duplicatesOnly bool

var classesCmd = &cobra.Command{
	Use:   "classes <root>...",
	Short: "List the classes of class roots",
	Long: `Classes lists every class served by the given roots (jars, jmods, plugin zips,
class files or directories) with its location. A class served by more than one
root is a duplicate: the first root shadows the others.

Examples:
  jverify classes lib/
  jverify classes --duplicates plugin.jar lib/*.jar`,
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: utils.CompleteFilesByExtension(".jar", ".zip", ".jmod", ".class"),
	RunE:              runClasses,
}

func runClasses(cmd *cobra.Command, args []string) error {
	if conf.Output.String == "tui" {
		return errors.New("classes supports cli and json output")
	}

	var owner resolver.Closer
	defer owner.Close()

	roots := make([]resolver.Resolver, 0, len(args))
	for _, path := range args {
		r, err := resolver.OpenPath(path)
		if err != nil {
			return err
		}
		roots = append(roots, owner.Add(r))
	}

	entries := listClasses(roots)
	if duplicatesOnly {
		entries = slices.DeleteFunc(entries, func(e report.ClassEntry) bool { return !e.Duplicate() })
	}
	return report.PrintClasses(cmd.OutOrStdout(), entries, conf.Output.String)
}

// listClasses gathers every class name with the locations serving it, in root order
func listClasses(roots []resolver.Resolver) []report.ClassEntry {
	index := make(map[string]int)
	var entries []report.ClassEntry
	for _, root := range roots {
		for name := range root.Names() {
			location, ok := root.Location(name)
			if !ok {
				continue
			}
			i, seen := index[name]
			if !seen {
				i = len(entries)
				index[name] = i
				entries = append(entries, report.ClassEntry{Name: name})
			}
			entries[i].Locations = append(entries[i].Locations, location)
		}
	}

	slices.SortFunc(entries, func(a, b report.ClassEntry) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return entries
}

func init() {
	classesCmd.Flags().BoolVar(&duplicatesOnly, "duplicates", false, "list only classes served by more than one root")
	rootCmd.AddCommand(classesCmd)
}
