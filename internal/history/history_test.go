package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-rs485/internal/infrastructure/database"
)

// setupTestRepository opens a bootstrapped database in a temp directory.
func setupTestRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "bridge.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := db.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrapping test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	return NewRepository(db.DB)
}

// insertRow inserts a history row with a specific timestamp.
func insertRow(t *testing.T, repo *Repository, id, deviceID, stateJSON string, createdAt time.Time) {
	t.Helper()

	_, err := repo.db.Exec(
		"INSERT INTO state_history (id, device_id, device_type, state, created_at) VALUES (?, ?, ?, ?, ?)",
		id,
		deviceID,
		"switch",
		stateJSON,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("inserting history row: %v", err)
	}
}

func TestRecordStateAndGetHistory(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	if err := repo.RecordState(ctx, "hall-1", "switch", map[string]any{"on": true}); err != nil {
		t.Fatalf("RecordState() error = %v", err)
	}
	if err := repo.RecordState(ctx, "hall-1", "switch", map[string]any{"on": false}); err != nil {
		t.Fatalf("RecordState() error = %v", err)
	}
	if err := repo.RecordState(ctx, "garage-door", "cover", map[string]any{"state": "open"}); err != nil {
		t.Fatalf("RecordState() error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "hall-1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("GetHistory() returned %d entries, want 2", len(entries))
	}
	for _, entry := range entries {
		if entry.DeviceID != "hall-1" {
			t.Errorf("entry device = %q, want hall-1", entry.DeviceID)
		}
		if entry.DeviceType != "switch" {
			t.Errorf("entry type = %q, want switch", entry.DeviceType)
		}
		if entry.ID == "" {
			t.Error("entry ID is empty, want generated UUID")
		}
	}
}

func TestGetHistoryOrdersNewestFirst(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	insertRow(t, repo, "a", "hall-1", `{"on":true}`, base)
	insertRow(t, repo, "b", "hall-1", `{"on":false}`, base.Add(time.Minute))
	insertRow(t, repo, "c", "hall-1", `{"on":true}`, base.Add(2*time.Minute))

	entries, err := repo.GetHistory(ctx, "hall-1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("GetHistory() returned %d entries, want 3", len(entries))
	}
	if entries[0].ID != "c" || entries[1].ID != "b" || entries[2].ID != "a" {
		t.Errorf("entries out of order: %s, %s, %s", entries[0].ID, entries[1].ID, entries[2].ID)
	}
	if !entries[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("newest CreatedAt = %v, want %v", entries[0].CreatedAt, base.Add(2*time.Minute))
	}
}

func TestGetHistoryClampsLimit(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		if err := repo.RecordState(ctx, "hall-1", "switch", map[string]any{"seq": i}); err != nil {
			t.Fatalf("RecordState() error = %v", err)
		}
	}

	entries, err := repo.GetHistory(ctx, "hall-1", 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != defaultLimit {
		t.Errorf("default limit returned %d entries, want %d", len(entries), defaultLimit)
	}

	entries, err = repo.GetHistory(ctx, "hall-1", 10000)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 60 {
		t.Errorf("oversized limit returned %d entries, want 60", len(entries))
	}
}

func TestRecordStateValidation(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	if err := repo.RecordState(ctx, "", "switch", nil); err == nil {
		t.Error("RecordState() with empty device id should fail")
	}
	if err := repo.RecordState(ctx, "hall-1", "", nil); err == nil {
		t.Error("RecordState() with empty device type should fail")
	}

	// Nil state is stored as an empty snapshot.
	if err := repo.RecordState(ctx, "hall-1", "switch", nil); err != nil {
		t.Errorf("RecordState() with nil state error = %v", err)
	}
}

func TestPruneDeletesOldEntries(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	now := time.Now().UTC()
	insertRow(t, repo, "old", "hall-1", `{"on":true}`, now.Add(-48*time.Hour))
	insertRow(t, repo, "recent", "hall-1", `{"on":false}`, now.Add(-time.Hour))

	deleted, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("Prune() deleted %d rows, want 1", deleted)
	}

	entries, err := repo.GetHistory(ctx, "hall-1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "recent" {
		t.Errorf("remaining entries = %v, want only the recent one", entries)
	}

	if _, err := repo.Prune(ctx, 0); err == nil {
		t.Error("Prune() with non-positive duration should fail")
	}
}
