package migrations_test

import (
	"context"
	"testing"

	"github.com/nerrad567/printwatch/internal/audit"
	"github.com/nerrad567/printwatch/internal/infrastructure/database"
	"github.com/nerrad567/printwatch/internal/printer"
	"github.com/nerrad567/printwatch/internal/store"
	_ "github.com/nerrad567/printwatch/migrations"
)

// TestEmbeddedSchema applies the real migrations and exercises every table.
func TestEmbeddedSchema(t *testing.T) {
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	_, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending migrations after Migrate(): %+v", pending)
	}

	messages := store.New(database.NewBlobStore(db))
	messages.AddIncoming("printer/components/bracket", `{"status":"printing"}`)
	if err := messages.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	restored := store.New(database.NewBlobStore(db))
	if _, ok := restored.GetLatestIncoming("printer/components/bracket"); !ok {
		t.Error("snapshot not restored from kv_blobs")
	}

	history := printer.NewSQLiteHistoryRepository(db.DB)
	if err := history.Record(ctx, "bracket", `{"status":"printing"}`, store.DirectionIncoming); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	entries, err := history.List(ctx, "bracket", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("List() returned %d entries, want 1", len(entries))
	}

	audits := audit.NewSQLiteRepository(db.DB)
	if err := audits.Create(ctx, &audit.Log{Action: audit.ActionCancelPrint, Target: "bracket"}); err != nil {
		t.Fatalf("audit Create() error = %v", err)
	}
	result, err := audits.List(ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("audit List() error = %v", err)
	}
	if result.Total != 1 {
		t.Errorf("audit List() total = %d, want 1", result.Total)
	}

	// Reverting the newest migration drops audit_logs and leaves the rest.
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if _, err := audits.List(ctx, audit.Filter{}); err == nil {
		t.Error("audit_logs still present after MigrateDown()")
	}
	if _, err := history.List(ctx, "bracket", 0); err != nil {
		t.Errorf("component_history lost after one MigrateDown(): %v", err)
	}
}
