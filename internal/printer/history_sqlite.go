package printer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nerrad567/printwatch/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// historyTimeFormat is fixed-width so created_at sorts as text.
	historyTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// SQLiteHistoryRepository implements HistoryRepository using SQLite.
//
// Payloads are stored verbatim in the component_history table.
type SQLiteHistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteHistoryRepository creates a history repository on an open database.
//
// Parameters:
//   - db: Open SQLite connection with migrations applied
//
// Returns:
//   - *SQLiteHistoryRepository: Repository instance ready for use
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db, now: time.Now}
}

// Record inserts a history row for a component.
func (r *SQLiteHistoryRepository) Record(ctx context.Context, component string, state string, direction store.Direction) error {
	if component == "" {
		return fmt.Errorf("component is required")
	}
	if !direction.Valid() {
		return fmt.Errorf("invalid direction %q", direction)
	}
	if !gjson.Valid(state) {
		return fmt.Errorf("%w: state is not valid JSON", ErrInvalidState)
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO component_history (component, state, direction, created_at) VALUES (?, ?, ?, ?)",
		component,
		state,
		string(direction),
		r.now().UTC().Format(historyTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting component history: %w", err)
	}

	return nil
}

// List returns recent history entries for a component, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - component: Component ID
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []HistoryEntry: History entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteHistoryRepository) List(ctx context.Context, component string, limit int) ([]HistoryEntry, error) {
	if component == "" {
		return nil, fmt.Errorf("component is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, component, state, direction, created_at
		 FROM component_history
		 WHERE component = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		component,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying component history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var entry HistoryEntry
		var state, direction, createdAt string

		if err := rows.Scan(&entry.ID, &entry.Component, &state, &direction, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning component history: %w", err)
		}

		timestamp, err := parseHistoryTimestamp(createdAt)
		if err != nil {
			return nil, err
		}

		entry.State = []byte(state)
		entry.Direction = store.Direction(direction)
		entry.CreatedAt = timestamp
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating component history: %w", err)
	}

	return entries, nil
}

// Prune deletes history entries older than the given duration.
//
// Returns the number of rows deleted.
func (r *SQLiteHistoryRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := r.now().UTC().Add(-olderThan).Format(historyTimeFormat)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM component_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting component history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseHistoryTimestamp parses a created_at value written by Record or by
// the column default.
func parseHistoryTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339Nano, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02 15:04:05", value)
	if fallbackErr == nil {
		return fallback.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
