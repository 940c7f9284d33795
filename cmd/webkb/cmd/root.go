// Package cmd provides the CLI commands for webkb.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/webkb/internal/config"
	"github.com/Aman-CERP/webkb/internal/logging"
	"github.com/Aman-CERP/webkb/pkg/version"
)

var (
	configDir      string
	jsonOutput     bool
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the webkb CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "webkb",
		Short:   "Build and query a personal web knowledge base",
		Version: version.Version,
		Long: `webkb crawls, indexes, and searches a personal knowledge base built
from web pages, documentation sites, repositories, and video transcripts.

Run 'webkb add <url-or-prompt>' to discover sources, 'webkb process' to
fetch and index them, and 'webkb search <query>' to query the result.`,
	}
	cmd.SetVersionTemplate("webkb version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory to load webkb.yaml from")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if !debugMode {
			return nil
		}
		cleanup, err := logging.SetupDefault()
		if err != nil {
			return fmt.Errorf("logging setup: %w", err)
		}
		loggingCleanup = cleanup
		return nil
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if loggingCleanup != nil {
			loggingCleanup()
		}
		return nil
	}

	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func exitErr(err error) error {
	fmt.Fprintln(os.Stderr, "webkb:", err)
	return err
}

func cmdOut() *os.File {
	return os.Stdout
}
