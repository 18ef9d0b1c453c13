package history

import "errors"

var (
	// ErrBridgeIDRequired is returned when a record or query has no bridge ID.
	ErrBridgeIDRequired = errors.New("history: bridge id is required")

	// ErrInvalidSource is returned for a source other than unit or control.
	ErrInvalidSource = errors.New("history: invalid source")

	// ErrInvalidRetention is returned when Prune is given a non-positive duration.
	ErrInvalidRetention = errors.New("history: retention must be positive")
)
