package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/georgemunganga/sso-users/internal/config"
	"github.com/georgemunganga/sso-users/internal/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.DriverPostgres {
				return errors.New("migrate requires STORE_DRIVER=postgres")
			}

			db, err := database.OpenPostgres(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		},
	}
}
