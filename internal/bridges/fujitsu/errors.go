package fujitsu

import "errors"

// Domain errors for the Fujitsu bridge.
var (
	// ErrNoProtocol is returned when the bridge is created without a protocol.
	ErrNoProtocol = errors.New("fujitsu: protocol is required")

	// ErrNoBridgeID is returned when the bridge is created without an ID.
	ErrNoBridgeID = errors.New("fujitsu: bridge id is required")

	// ErrUnknownCommand is returned for a command other than "set".
	ErrUnknownCommand = errors.New("fujitsu: unknown command")

	// ErrInvalidParameters is returned when command parameters do not parse.
	ErrInvalidParameters = errors.New("fujitsu: invalid parameters")
)
