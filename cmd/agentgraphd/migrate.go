package main

import (
	"flag"
	"fmt"

	"go.uber.org/zap"

	"github.com/eigloo/agentgraph/internal/database"
	"github.com/eigloo/agentgraph/store"
)

// runMigrate opens the configured database, applies the schema, and
// exits. The memory driver has no schema to apply.
func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "memory" {
		fmt.Println("memory driver configured, nothing to migrate")
		return nil
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.OpenConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN(),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("unwrap database: %w", err)
	}
	defer sqlDB.Close()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations applied", zap.String("driver", cfg.Database.Driver))
	fmt.Println("migrations applied")
	return nil
}
