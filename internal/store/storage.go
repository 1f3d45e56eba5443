package store

import (
	"context"
	"sync"
)

// DefaultStorageKey is the key the snapshot is stored under.
const DefaultStorageKey = "messageStore"

// BlobStorage is the key-value blob store the snapshot is persisted to.
//
// Get returns ok=false when the key does not exist. Remove of a missing key is
// not an error.
type BlobStorage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// MemoryStorage is an in-process BlobStorage.
//
// It is used in tests and when persistence is disabled (store.backend: memory).
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string]string)}
}

// Get implements BlobStorage.
func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.blobs[key]
	return v, ok, nil
}

// Set implements BlobStorage.
func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = value
	return nil
}

// Remove implements BlobStorage.
func (m *MemoryStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}
