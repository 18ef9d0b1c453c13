package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/fujitsu-bridge/internal/climate"
)

const (
	// DefaultLimit is the number of entries List returns when limit <= 0.
	DefaultLimit = 50

	// MaxLimit caps a single List call.
	MaxLimit = 500

	// timestampLayout sorts lexically in time order.
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// Source values.
const (
	// SourceUnit marks a state reported by the indoor unit.
	SourceUnit = "unit"

	// SourceControl marks a state requested through Control.
	SourceControl = "control"
)

// Entry is a single recorded state.
type Entry struct {
	ID        int64         `json:"id"`
	BridgeID  string        `json:"bridge_id"`
	State     climate.State `json:"state"`
	Source    string        `json:"source"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store reads and writes the climate_history table.
// It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore returns a Store over an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Record stores a state snapshot.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - bridgeID: Bridge the state belongs to
//   - state: Snapshot to persist
//   - source: SourceUnit or SourceControl; empty means SourceUnit
//
// Returns:
//   - error: ErrBridgeIDRequired, ErrInvalidSource, or the database error
func (s *Store) Record(ctx context.Context, bridgeID string, state climate.State, source string) error {
	if bridgeID == "" {
		return ErrBridgeIDRequired
	}
	switch source {
	case "":
		source = SourceUnit
	case SourceUnit, SourceControl:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO climate_history (bridge_id, state, source, created_at) VALUES (?, ?, ?, ?)",
		bridgeID,
		string(stateJSON),
		source,
		s.now().UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting climate history: %w", err)
	}
	return nil
}

// List returns the most recent entries for a bridge, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - bridgeID: Bridge to query
//   - limit: Maximum entries (default 50, max 500)
//
// Returns:
//   - []Entry: Entries ordered newest first (may be empty, never nil)
//   - error: ErrBridgeIDRequired or the database error
func (s *Store) List(ctx context.Context, bridgeID string, limit int) ([]Entry, error) {
	if bridgeID == "" {
		return nil, ErrBridgeIDRequired
	}
	limit = ClampLimit(limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bridge_id, state, source, created_at
		 FROM climate_history
		 WHERE bridge_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		bridgeID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying climate history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var stateJSON, createdAt string

		if err := rows.Scan(&e.ID, &e.BridgeID, &stateJSON, &e.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning climate history: %w", err)
		}
		if err := json.Unmarshal([]byte(stateJSON), &e.State); err != nil {
			return nil, fmt.Errorf("unmarshalling state: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating climate history: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than olderThan and returns how many went.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}

	cutoff := s.now().UTC().Add(-olderThan).Format(timestampLayout)
	result, err := s.db.ExecContext(ctx, "DELETE FROM climate_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting climate history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// ClampLimit applies the List default and maximum.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
