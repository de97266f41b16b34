// Package importer implements the import command, which loads a saved
// questions artifact into the configured sinks.
package importer

import (
	"fmt"

	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/north-cloud/question-crawler/cmd/common"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/logger"
)

// Command returns the import command for use in the root command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "import <questions.json>",
		Short: "Validate, deduplicate and upsert a questions artifact",
		Long: `Import reads a questions.json written by an earlier crawl, drops records
without question text, removes duplicates and upserts the rest into the
enabled sinks. Records missing module, difficulty or program get defaults.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer func() { _ = deps.Logger.Sync() }()

			ctx := cmd.Context()
			app, err := bootstrap.New(ctx, deps.Config, deps.Logger, bootstrap.WithoutPageSource())
			if err != nil {
				return fmt.Errorf("failed to bootstrap importer: %w", err)
			}
			defer func() {
				if closeErr := app.Close(); closeErr != nil {
					deps.Logger.Warn("Failed to release resources", logger.Error(closeErr))
				}
			}()

			summary, err := app.Import(ctx, args[0])
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			cmdcommon.RenderImportSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}
