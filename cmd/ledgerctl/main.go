package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ndewijer/investment-ledger/internal/config"
	"github.com/ndewijer/investment-ledger/internal/logging"
	"github.com/ndewijer/investment-ledger/internal/version"
)

var (
	outputFormat string
	logLevel     string

	// Populated by the root command before any subcommand runs.
	cfg    *config.Config
	logger zerolog.Logger
)

// rootCmd is the base command for the ledger CLI
var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Offline tools for investment ledgers",
	Long: `ledgerctl validates ledgers, computes their rates and aggregates portfolios from
JSON or YAML files, without a running server. Engine options are read from the same
environment variables and .env file as the server.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if logger, err = logging.Setup(logLevel, "console"); err != nil {
			return err
		}
		if cfg, err = config.Load(); err != nil {
			return err
		}
		switch outputFormat {
		case "json", "yaml":
			return nil
		default:
			return fmt.Errorf("invalid output format %q: must be json or yaml", outputFormat)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "Output format: json or yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
