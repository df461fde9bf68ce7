package cli

import (
	"fmt"

	"github.com/SscSPs/credit_ledger_service/internal/platform/config"
	"github.com/SscSPs/credit_ledger_service/pkg/database"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("down", false, "Roll back every migration instead of applying them")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  `Apply pending migrations from MIGRATIONS_PATH to the database at PGSQL_URL.`,
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.StorageDriver != config.StoragePostgres {
		return fmt.Errorf("migrate requires STORAGE_DRIVER=%s, got %q", config.StoragePostgres, cfg.StorageDriver)
	}

	direction := database.MigrateUp
	if down, _ := cmd.Flags().GetBool("down"); down {
		direction = database.MigrateDown
	}
	if err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, direction, newLogger()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrations %s complete.\n", direction)
	return nil
}
