package main

import (
	"context"
	"fmt"
	"io"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hub/migrations"
)

// migrateMode selects a schema maintenance action.
type migrateMode int

const (
	migrateModeStatus migrateMode = iota
	migrateModeDown
)

// runMigrate opens the journal database without applying migrations,
// optionally rolls back the latest one, and prints the resulting status.
func runMigrate(ctx context.Context, mode migrateMode, out io.Writer) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-mostly maintenance connection

	if mode == migrateModeDown {
		if err := db.MigrateDown(ctx, migrations.FS()); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
	}

	applied, pending, err := db.GetMigrationStatus(ctx, migrations.FS())
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	fmt.Fprintf(out, "database: %s\n", db.Path())
	for _, m := range applied {
		fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range pending {
		fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}
