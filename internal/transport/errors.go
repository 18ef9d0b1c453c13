package transport

import "errors"

var (
	// ErrNoTransport is returned when neither a port nor a URL is configured.
	ErrNoTransport = errors.New("transport: heatpump.port or heatpump.url is required")

	// ErrOpenFailed is returned when the serial port cannot be opened.
	ErrOpenFailed = errors.New("transport: open failed")

	// ErrInvalidURL is returned for a malformed or non-WebSocket URL.
	ErrInvalidURL = errors.New("transport: invalid url")

	// ErrDialFailed is returned when the WebSocket handshake fails.
	ErrDialFailed = errors.New("transport: websocket dial failed")

	// ErrClosed is returned when reading from or writing to a closed connection.
	ErrClosed = errors.New("transport: connection closed")
)
