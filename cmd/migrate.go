package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seshat-labs/seshat/db"
	"github.com/seshat-labs/seshat/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		dbURL, schema, err := cfg.ResolveDatabase(flagDBURL, flagSchema)
		if err != nil {
			return err
		}
		return db.Migrate(dbURL, schema)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
