package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/urfave/cli/v3"

	"github.com/izavyalov-dev/recipebox/internal/config"
	"github.com/izavyalov-dev/recipebox/internal/observability"
	"github.com/izavyalov-dev/recipebox/recipes"
	"github.com/izavyalov-dev/recipebox/state"
)

// loadConfig layers CLI flags over the file and environment configuration.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	if v := cmd.String("database-url"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := cmd.String("store"); v != "" {
		cfg.Store = v
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if cmd.IsSet("listen") {
		cfg.ListenAddr = cmd.String("listen")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config, component string) *slog.Logger {
	return observability.NewLoggerWithLevel(component, observability.ParseLevel(cfg.LogLevel))
}

// backend is the storage a command runs against.
type backend struct {
	collection recipes.Collection
	ping       func(ctx context.Context) error
	close      func() error
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store; data is lost on exit", "event", "memory_store")
		return backend{
			collection: state.NewMemoryCollection(recipes.CollectionName),
			close:      func() error { return nil },
		}, nil
	case config.StorePostgres:
		db, err := openDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return backend{}, err
		}
		store := state.NewStore(db)
		applied, err := store.ApplyMigrations(ctx)
		if err != nil {
			_ = db.Close()
			return backend{}, err
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", "event", "migrations_applied", "ids", applied)
		}
		return backend{
			collection: store.Collection(recipes.CollectionName),
			ping:       store.Ping,
			close:      db.Close,
		}, nil
	default:
		return backend{}, errors.New("unknown store " + cfg.Store)
	}
}

func openDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
