package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// openTestDB opens a database in a temporary directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "bridge.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "bridge.db")

	db, err := Open(Config{Path: path, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("database directory not created: %v", err)
	}
	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestCloseIsIdempotentOnNil(t *testing.T) {
	db := &DB{}
	if err := db.Close(); err != nil {
		t.Errorf("Close() on zero value error = %v", err)
	}
}

func TestBootstrapFreshDatabase(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != schemaVersion {
		t.Errorf("schema version = %d, want %d", version, schemaVersion)
	}

	// The state_history table must exist and accept rows.
	_, err = db.ExecContext(ctx,
		"INSERT INTO state_history (id, device_id, device_type, state) VALUES (?, ?, ?, ?)",
		"test-id", "hall-1", "switch", `{"on":true}`,
	)
	if err != nil {
		t.Errorf("inserting into state_history: %v", err)
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Bootstrap(ctx); err != nil {
		t.Fatalf("first Bootstrap() error = %v", err)
	}
	if err := db.Bootstrap(ctx); err != nil {
		t.Fatalf("second Bootstrap() error = %v", err)
	}
}

func TestBootstrapRejectsNewerSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA user_version = 99"); err != nil {
		t.Fatalf("setting user_version: %v", err)
	}

	if err := db.Bootstrap(ctx); err == nil {
		t.Error("Bootstrap() with newer schema version should fail")
	}
}
