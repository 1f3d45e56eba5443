package printer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/printwatch/internal/store"
)

// HistoryEntry is one recorded component state.
//
// Every valid component message and every command sent for a component
// produces an entry, so the table is an audit trail of a print job even after
// the latest-value store has moved on.
type HistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// Component is the component ID (the last topic level).
	Component string `json:"component"`

	// State is the raw JSON payload.
	State json.RawMessage `json:"state"`

	// Direction tells whether the state was received or sent.
	Direction store.Direction `json:"direction"`

	// CreatedAt is the time the row was written (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRepository stores and retrieves component state history.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	// Record appends a state snapshot for a component.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - component: Component ID
	//   - state: Raw JSON payload
	//   - direction: Whether the payload was received or sent
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	Record(ctx context.Context, component string, state string, direction store.Direction) error

	// List returns recent history for a component, newest first.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - component: Component ID
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []HistoryEntry: Ordered newest-first history entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	List(ctx context.Context, component string, limit int) ([]HistoryEntry, error)

	// Prune deletes entries older than the retention period.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
