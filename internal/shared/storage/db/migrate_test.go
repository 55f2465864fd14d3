package db

import (
	"context"
	"io/fs"
	"strings"
	"testing"
)

func TestMigrateNilDatabaseIsNoop(t *testing.T) {
	if err := RunMigrations(context.Background(), nil); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestMigrateRejectsUnknownCommand(t *testing.T) {
	useMock(t, false)
	database, err := Connect(context.Background(), "postgres://tga", ProfileMigrate.Options())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer database.Close()

	err = Migrate(context.Background(), database, "drop-everything")
	if err == nil || !strings.Contains(err.Error(), "unknown migration command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestEmbeddedMigrationsCreateJobsTable(t *testing.T) {
	files, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil || len(files) == 0 {
		t.Fatalf("expected embedded migrations, got %v (%v)", files, err)
	}
	raw, err := fs.ReadFile(migrationFiles, files[0])
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sql := string(raw)
	for _, want := range []string{"-- +goose Up", "CREATE TABLE", "jobs", "-- +goose Down"} {
		if !strings.Contains(sql, want) {
			t.Fatalf("migration missing %q", want)
		}
	}
}
