// Package store keeps the latest MQTT message per topic.
//
// MessageStore holds two latest-value caches, one for messages received from
// the broker (incoming) and one for messages the dashboard published
// (outgoing). Each cache keeps a single entry per exact topic; a newer write
// replaces the older entry, it is never merged with it.
//
// Lookups work on exact topics or on MQTT filters (see package topic). When a
// topic has entries in both directions the one with the greater timestamp wins.
//
// # Persistence
//
// After every mutation the full snapshot of both caches is written to a
// BlobStorage under a single key:
//
//	{"incoming":[{...}],"outgoing":[{...}]}
//
// Loading is best-effort: a missing or corrupt blob leaves the store empty and
// logs a warning. A failed write is logged and the in-memory update stands;
// Close retries the write. There is no transactional guarantee between the
// in-memory mutation and the persisted copy.
//
// # Notifications
//
// Subscribe registers a zero-argument callback run after each mutation that
// changed state. Callbacks run synchronously on the mutating goroutine, after
// the store lock is released, so they may read from the store.
//
// # Thread Safety
//
// All methods are safe for concurrent use. A single mutex covers both caches
// and the read-modify-write in UpdateComponentState.
package store
