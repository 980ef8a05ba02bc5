package database

import (
	"context"
	"embed"
	"path/filepath"
	"testing"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// openTestDB opens a database in a temp directory with test migrations registered.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	origFS, origDir := MigrationsFS, MigrationsDir
	MigrationsFS = testMigrationsFS
	MigrationsDir = "testdata"
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})

	db, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})

	return db
}

func TestOpen_CreatesDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestMigrate_AppliesPending(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Table from the test migration should exist.
	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='widgets'").Scan(&name)
	if err != nil {
		t.Fatalf("expected widgets table after migration: %v", err)
	}

	// Migration should be recorded.
	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("querying schema_migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("schema_migrations count = %d, want 1", count)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("querying schema_migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("schema_migrations count after re-run = %d, want 1", count)
	}
}

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		base        string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"20260110_120000_initial_schema", "20260110_120000", "initial_schema", true},
		{"20260110_120000_add_widgets_index", "20260110_120000", "add_widgets_index", true},
		{"badname", "", "", false},
		{"20260110_120000", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			version, name, ok := parseMigrationName(tt.base)
			if ok != tt.wantOK {
				t.Fatalf("parseMigrationName(%q) ok = %v, want %v", tt.base, ok, tt.wantOK)
			}
			if version != tt.wantVersion || name != tt.wantName {
				t.Errorf("parseMigrationName(%q) = (%q, %q), want (%q, %q)",
					tt.base, version, name, tt.wantVersion, tt.wantName)
			}
		})
	}
}
