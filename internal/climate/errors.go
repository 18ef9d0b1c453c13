package climate

import "errors"

// Domain errors for the climate bridge.
var (
	// ErrLockTimeout is returned when the shared device state could not be
	// acquired within the configured wait.
	ErrLockTimeout = errors.New("climate: lock acquisition timed out")

	// ErrInvalidRequest is returned when a control request fails validation
	// against the entity traits.
	ErrInvalidRequest = errors.New("climate: invalid request")

	// ErrNoProtocol is returned when a Controller is built without a protocol.
	ErrNoProtocol = errors.New("climate: protocol is required")

	// ErrAlreadyStarted is returned when Setup is called twice or after Stop.
	ErrAlreadyStarted = errors.New("climate: already started")
)
