// Package stats implements the stats command, which prints a saved run
// report.
package stats

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/north-cloud/question-crawler/cmd/common"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/sink"
)

// Command returns the stats command for use in the root command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [stats.json]",
		Short: "Print a crawl report",
		Long: `Stats renders a stats.json artifact as a table. Without an argument it
reads the stats file under the configured output directory.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				deps, err := cmdcommon.NewCommandDeps()
				if err != nil {
					return fmt.Errorf("failed to initialize dependencies: %w", err)
				}
				path = filepath.Join(deps.Config.Output.Dir, deps.Config.Output.StatsFile)
			}

			report, err := sink.ReadStats(path)
			if err != nil {
				return err
			}

			cmdcommon.RenderStats(cmd.OutOrStdout(), report)
			return nil
		},
	}
}
