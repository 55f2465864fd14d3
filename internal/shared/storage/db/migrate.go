package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/pressly/goose/v3"

	"tga-backend/internal/shared/telemetry"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationCommands are the goose commands Migrate accepts.
var MigrationCommands = []string{"up", "down", "status", "version", "redo"}

// RunMigrations applies every pending jobs-table migration. A nil database is
// a no-op so memory-backed processes can call it unconditionally.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	return Migrate(ctx, database, "up")
}

// Migrate runs one goose command against the embedded migrations.
func Migrate(ctx context.Context, database *sql.DB, command string) error {
	if database == nil {
		return nil
	}
	if !slices.Contains(MigrationCommands, command) {
		return fmt.Errorf("unknown migration command %q (want one of %s)", command, strings.Join(MigrationCommands, ", "))
	}
	goose.SetBaseFS(migrationFiles)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.RunContext(ctx, command, database, "migrations")
}

type gooseLogger struct{}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	telemetry.Error("db.migrate", map[string]any{"detail": fmt.Sprintf(format, v...)})
	os.Exit(1)
}

func (gooseLogger) Printf(format string, v ...interface{}) {
	telemetry.Info("db.migrate", map[string]any{"detail": strings.TrimSpace(fmt.Sprintf(format, v...))})
}
