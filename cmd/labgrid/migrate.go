package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/labgrid/db"
	"github.com/dmitrymomot/labgrid/pkg/pg"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != DriverPostgres {
				return fmt.Errorf("migrate requires STORAGE_DRIVER=%s, got %q", DriverPostgres, cfg.Storage.Driver)
			}
			log := newLogger(cfg.Log)

			pool, err := pg.Connect(cmd.Context(), cfg.Postgres)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pg.Migrate(cmd.Context(), pool, db.Migrations, db.MigrationsDir, cfg.Postgres, log); err != nil {
				return err
			}
			log.InfoContext(cmd.Context(), "migrations applied")
			return nil
		},
	}
}
