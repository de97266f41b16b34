// Package crawl implements the crawl command.
package crawl

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdcommon "github.com/jonesrussell/north-cloud/question-crawler/cmd/common"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/config"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/logger"
)

// flagKeys maps each crawl flag to the config key it overrides.
var flagKeys = map[string]string{
	"start-url":     config.KeyStartURL,
	"max-pages":     config.KeyMaxPages,
	"max-questions": config.KeyMaxQuestions,
	"delay":         config.KeyDelay,
	"timeout":       config.KeyTimeout,
	"render":        config.KeyRender,
	"headless":      config.KeyHeadless,
	"output":        config.KeyOutputDir,
	"dry-run":       config.KeyDryRun,
}

// Command returns the crawl command for use in the root command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the configured site for practice questions",
		Long: `Crawl starts at crawler.start_url (plus crawler.seed_urls), follows links that
look like question pages on the same site and extracts questions until the
page or question limit is reached.

Flags override the matching config file and environment settings. Ctrl+C
stops the crawl; questions found so far are still written and delivered.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}

	flags := cmd.Flags()
	flags.String("start-url", "", "URL the crawl starts from")
	flags.Int("max-pages", config.DefaultMaxPages, "maximum number of pages to scan")
	flags.Int("max-questions", config.DefaultMaxQuestions, "stop once this many questions are found")
	flags.Duration("delay", config.DefaultDelay, "minimum time between page loads")
	flags.Duration("timeout", config.DefaultTimeout, "per-page load timeout")
	flags.Bool("render", false, "load pages in a headless browser instead of plain HTTP")
	flags.Bool("headless", true, "run the browser without a window (with --render)")
	flags.String("output", config.DefaultOutputDir, "directory for questions.json and stats.json")
	flags.Bool("dry-run", false, "write artifacts but skip the database and index sinks")

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	if err := bindFlags(viper.GetViper(), cmd); err != nil {
		return err
	}

	deps, err := cmdcommon.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer func() { _ = deps.Logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, deps.Config, deps.Logger)
	if err != nil {
		return fmt.Errorf("failed to bootstrap crawler: %w", err)
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			deps.Logger.Warn("Failed to release resources", logger.Error(closeErr))
		}
	}()

	summary, err := app.Crawl(ctx)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	cmdcommon.RenderCrawlSummary(cmd.OutOrStdout(), summary)
	return nil
}

// bindFlags binds every crawl flag to its config key. Only flags set on the
// command line count as overrides.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", name, err)
		}
	}
	return nil
}
