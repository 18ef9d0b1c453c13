package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaud is the controller bus speed.
const DefaultBaud = 500

// SerialConn wraps a serial port.
type SerialConn struct {
	port serial.Port
	name string
}

// OpenSerial opens a serial port configured for the controller bus:
// 8 data bits, even parity, one stop bit.
//
// Parameters:
//   - name: Device path (e.g. /dev/ttyUSB0)
//   - baud: Line speed; 0 selects DefaultBaud
//   - readTimeout: Maximum time a Read waits for data
//
// Returns:
//   - *SerialConn: Open port
//   - error: ErrOpenFailed wrapping the driver error
func OpenSerial(name string, baud int, readTimeout time.Duration) (*SerialConn, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, name, err)
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: setting read timeout on %s: %w", ErrOpenFailed, name, err)
	}

	// Drop whatever was buffered before we attached so the first frame
	// boundary is found quickly.
	_ = port.ResetInputBuffer() //nolint:errcheck // Not all drivers support it

	return &SerialConn{port: port, name: name}, nil
}

func (s *SerialConn) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConn) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// Close closes the port. A blocked Read returns once the port is closed.
func (s *SerialConn) Close() error {
	return s.port.Close()
}

// Name returns the device path.
func (s *SerialConn) Name() string {
	return s.name
}

// ListPorts returns the serial devices present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}
