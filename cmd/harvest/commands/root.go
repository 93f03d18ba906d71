// Package commands implements the CLI commands for harvest.
package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/use-agent/harvest/app"
	"github.com/use-agent/harvest/config"
)

// Factory builds the extraction stack for a command.
type Factory func(cfg *config.Config) (*app.App, error)

// rootFlags are the global flags that override environment configuration.
type rootFlags struct {
	logLevel    string
	logFormat   string
	engine      string
	sourcesFile string
}

// NewRootCmd builds the command tree. factory may be nil to use app.New.
func NewRootCmd(factory Factory) *cobra.Command {
	if factory == nil {
		factory = func(cfg *config.Config) (*app.App, error) { return app.New(cfg) }
	}
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "harvest",
		Short: "Resilient structured-field extraction from web pages",
		Long: `Harvest reads a small set of structured fields (titles, authors,
listing items, response counts) from pages whose markup is not stable,
trying an ordered list of strategies per field and validating the result.

Examples:
  # Extract the books listing, walking three pages
  harvest run books --pages 3

  # Run every registered source and write a combined document
  harvest run --all --out ./output

  # Serve the HTTP API
  harvest serve`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (env HARVEST_LOG_LEVEL)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format: json or text (env HARVEST_LOG_FORMAT)")
	root.PersistentFlags().StringVar(&flags.engine, "engine", "", "browser engine: rod or static (env HARVEST_ENGINE)")
	root.PersistentFlags().StringVar(&flags.sourcesFile, "sources", "", "YAML file with additional sources (env HARVEST_SOURCES_FILE)")

	// load resolves configuration for a subcommand and configures logging.
	load := func() *config.Config {
		cfg := config.Load()
		if flags.logLevel != "" {
			cfg.Log.Level = flags.logLevel
		}
		if flags.logFormat != "" {
			cfg.Log.Format = flags.logFormat
		}
		if flags.engine != "" {
			cfg.Browser.Engine = flags.engine
		}
		if flags.sourcesFile != "" {
			cfg.Sources.File = flags.sourcesFile
		}
		app.InitLogger(cfg.Log)
		return cfg
	}

	root.AddCommand(
		newRunCmd(load, factory),
		newSourcesCmd(load, factory),
		newServeCmd(load, factory),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd(nil).Execute()
}

// logError prints an error message to w.
func logError(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "Error: "+format+"\n", args...)
}
