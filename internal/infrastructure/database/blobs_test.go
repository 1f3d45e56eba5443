package database

import (
	"context"
	"testing"
	"time"
)

func newTestBlobStore(t *testing.T) *BlobStore {
	t.Helper()
	db := openTestDB(t)
	_, err := db.ExecContext(context.Background(), `
		CREATE TABLE kv_blobs (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT`)
	if err != nil {
		t.Fatalf("creating kv_blobs: %v", err)
	}
	return NewBlobStore(db)
}

func TestBlobStore_GetMissing(t *testing.T) {
	blobs := newTestBlobStore(t)

	value, ok, err := blobs.Get(context.Background(), "messageStore")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok || value != "" {
		t.Errorf("Get() = (%q, %v), want (\"\", false)", value, ok)
	}
}

func TestBlobStore_SetOverwrites(t *testing.T) {
	blobs := newTestBlobStore(t)
	ctx := context.Background()

	stamp := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	blobs.now = func() time.Time { return stamp }

	if err := blobs.Set(ctx, "messageStore", `{"incoming":[],"outgoing":[]}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := blobs.Set(ctx, "messageStore", `{"incoming":[{"topic":"a"}],"outgoing":[]}`); err != nil {
		t.Fatalf("second Set() error = %v", err)
	}

	value, ok, err := blobs.Get(ctx, "messageStore")
	if err != nil || !ok {
		t.Fatalf("Get() = (%q, %v, %v)", value, ok, err)
	}
	if value != `{"incoming":[{"topic":"a"}],"outgoing":[]}` {
		t.Errorf("Get() = %q, want latest value", value)
	}

	var updatedAt string
	if err := blobs.db.QueryRowContext(ctx, "SELECT updated_at FROM kv_blobs WHERE key = ?", "messageStore").Scan(&updatedAt); err != nil {
		t.Fatalf("reading updated_at: %v", err)
	}
	if updatedAt != "2026-10-18T12:00:00Z" {
		t.Errorf("updated_at = %q", updatedAt)
	}
}

func TestBlobStore_Remove(t *testing.T) {
	blobs := newTestBlobStore(t)
	ctx := context.Background()

	if err := blobs.Remove(ctx, "absent"); err != nil {
		t.Errorf("Remove() of absent key error = %v", err)
	}

	if err := blobs.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := blobs.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok, _ := blobs.Get(ctx, "k"); ok {
		t.Error("key still present after Remove()")
	}
}

func TestBlobStore_ClosedDatabase(t *testing.T) {
	blobs := newTestBlobStore(t)
	blobs.db.DB.Close() //nolint:errcheck // forcing failures

	ctx := context.Background()
	if _, _, err := blobs.Get(ctx, "k"); err == nil {
		t.Error("Get() on closed database should fail")
	}
	if err := blobs.Set(ctx, "k", "v"); err == nil {
		t.Error("Set() on closed database should fail")
	}
	if err := blobs.Remove(ctx, "k"); err == nil {
		t.Error("Remove() on closed database should fail")
	}
}
