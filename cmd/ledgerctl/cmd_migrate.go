package main

import (
	"github.com/spf13/cobra"

	"github.com/ndewijer/investment-ledger/internal/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema up to date",
	Long: `Apply every pending schema migration to the server database and print the
resulting schema version. The database path defaults to DB_PATH.

Examples:
  ledgerctl migrate
  ledgerctl migrate --db ./data/investment_ledger.db`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

var migrateDBPath string

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringVar(&migrateDBPath, "db", "", "Database path (default: DB_PATH)")
}

// MigrateReport is the output of the migrate command.
type MigrateReport struct {
	Database string `json:"database" yaml:"database"`
	Version  int64  `json:"version" yaml:"version"`
}

func runMigrate(cmd *cobra.Command, args []string) error {
	path := migrateDBPath
	if path == "" {
		path = cfg.Database.Path
	}

	db, err := database.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return err
	}
	v, err := database.Version(db)
	if err != nil {
		return err
	}
	logger.Info().Str("path", path).Int64("version", v).Msg("database migrated")

	return writeOutput(cmd.OutOrStdout(), MigrateReport{Database: path, Version: v})
}
