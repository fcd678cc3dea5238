package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knowbase/knowbase/db"
	"github.com/knowbase/knowbase/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Applies the embedded SQL migrations to the configured PostgreSQL
database. Requires the pgvector extension to be installable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if err := db.Migrate(cfg.PostgresURL()); err != nil {
			return err
		}
		fmt.Println("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
