package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// BlobStore is a string key-value table (kv_blobs) used to persist the
// message store snapshot. It satisfies store.BlobStorage.
type BlobStore struct {
	db  *DB
	now func() time.Time
}

// NewBlobStore creates a BlobStore over db. The kv_blobs table is created by
// the message_store migration.
func NewBlobStore(db *DB) *BlobStore {
	return &BlobStore{db: db, now: time.Now}
}

// Get returns the value stored under key. ok is false when the key is absent.
func (b *BlobStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx, "SELECT value FROM kv_blobs WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading blob %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (b *BlobStore) Set(ctx context.Context, key, value string) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO kv_blobs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, b.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("writing blob %q: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key succeeds.
func (b *BlobStore) Remove(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, "DELETE FROM kv_blobs WHERE key = ?", key); err != nil {
		return fmt.Errorf("removing blob %q: %w", key, err)
	}
	return nil
}
