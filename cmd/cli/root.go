// Package cli implements the throttle-admin command-line tool.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/throttle/internal/config"
)

// Output formats accepted by --output.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// NewRootCommand builds the throttle-admin command tree.
func NewRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "throttle-admin",
		Short: "Inspect and exercise the throttle rate limiters.",
		Long: `throttle-admin prints the effective named rate limiters, simulates traffic
against them and issues bearer tokens for testing principal-based limits.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to the configuration file")

	load := func() (*config.Config, error) {
		return config.LoadConfig(configFile)
	}

	root.AddCommand(
		newLimitersCommand(load),
		newSimulateCommand(load),
		newTokenCommand(load),
	)
	return root
}

// Execute runs the command tree and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}
