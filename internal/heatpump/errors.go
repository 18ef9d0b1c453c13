package heatpump

import "errors"

// Domain errors for the heat-pump protocol.
var (
	// ErrInvalidFrame is returned when raw bytes do not form a valid frame.
	ErrInvalidFrame = errors.New("heatpump: invalid frame")

	// ErrFrameTimeout is returned when the bus went quiet before a full frame arrived.
	ErrFrameTimeout = errors.New("heatpump: frame timeout")

	// ErrReadFailed is returned when the underlying transport read fails.
	ErrReadFailed = errors.New("heatpump: read failed")

	// ErrWriteFailed is returned when a frame could not be written.
	ErrWriteFailed = errors.New("heatpump: write failed")

	// ErrNotConnected is returned when an operation needs a transport and none is set.
	ErrNotConnected = errors.New("heatpump: not connected")
)
