package database

import (
	"context"
	"fmt"
)

// schemaVersion is the version Bootstrap brings the database to.
// Bump it when appending to schemaSteps.
const schemaVersion = 1

// schemaSteps holds the incremental schema changes, one entry per
// version starting at version 1. Each step runs in its own transaction
// and PRAGMA user_version records progress, so a partially upgraded
// database resumes where it left off.
var schemaSteps = []string{
	// Version 1: device state history.
	`CREATE TABLE state_history (
		id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		device_type TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	) STRICT;
	CREATE INDEX idx_state_history_device ON state_history(device_id, created_at DESC);
	CREATE INDEX idx_state_history_time ON state_history(created_at DESC);`,
}

// Bootstrap brings the database schema up to the current version.
// It is safe to call on every startup; an up-to-date database is a no-op.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If a schema step or version update fails
func (db *DB) Bootstrap(ctx context.Context) error {
	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if current > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, schemaVersion)
	}

	for version := current + 1; version <= schemaVersion; version++ {
		if err := db.applySchemaStep(ctx, version); err != nil {
			return fmt.Errorf("applying schema version %d: %w", version, err)
		}
	}

	return nil
}

// SchemaVersion returns the schema version recorded in the database.
// A fresh database reports version 0.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// applySchemaStep runs a single schema step and records the new version.
func (db *DB) applySchemaStep(ctx context.Context, version int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if _, err := tx.ExecContext(ctx, schemaSteps[version-1]); err != nil {
		return fmt.Errorf("executing schema step: %w", err)
	}

	// PRAGMA does not support placeholders; version comes from the
	// loop counter, never user input.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}

	return tx.Commit()
}
