// Package cmd implements the command-line interface for the question crawler.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdcommon "github.com/jonesrussell/north-cloud/question-crawler/cmd/common"
	"github.com/jonesrussell/north-cloud/question-crawler/cmd/crawl"
	"github.com/jonesrussell/north-cloud/question-crawler/cmd/importer"
	"github.com/jonesrussell/north-cloud/question-crawler/cmd/stats"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug logging for all commands
	Debug bool

	rootCmd = &cobra.Command{
		Use:   "question-crawler",
		Short: "Crawl SAT practice questions into JSON and the configured sinks",
		Long: `question-crawler walks a practice-question site, extracts multiple-choice
questions with a cascade of strategies, writes questions.json and stats.json
and upserts the questions into PostgreSQL and Elasticsearch when enabled.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is $CONFIG_PATH or ./config.yml)",
	)
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug logging")

	cobra.CheckErr(viper.BindPFlag(cmdcommon.KeyConfigFile, rootCmd.PersistentFlags().Lookup("config")))
	cobra.CheckErr(viper.BindPFlag(cmdcommon.KeyDebug, rootCmd.PersistentFlags().Lookup("debug")))

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "question-crawler version %s\n", Version)
		},
	})

	rootCmd.AddCommand(crawl.Command())
	rootCmd.AddCommand(importer.Command())
	rootCmd.AddCommand(stats.Command())
}
