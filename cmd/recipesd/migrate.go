package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/izavyalov-dev/recipebox/internal/config"
	"github.com/izavyalov-dev/recipebox/state"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations and exit",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return fmt.Errorf("migrate requires the %s store", config.StorePostgres)
			}
			logger := newLogger(cfg, "recipesd.migrate")

			db, err := openDB(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := state.NewStore(db).ApplyMigrations(ctx)
			if err != nil {
				return err
			}
			logger.Info("migrations complete", "event", "migrations_complete", "applied", len(applied), "ids", applied)
			return nil
		},
	}
}
