package climate

import "github.com/nerrad567/fujitsu-bridge/internal/heatpump"

// Protocol is the heat-pump protocol layer driven by the pump and the
// controller. *heatpump.HeatPump satisfies it.
type Protocol interface {
	// WaitForFrame consumes the next bus frame. It returns true when an
	// answer is pending.
	WaitForFrame() bool

	// SendPendingFrame transmits the pending answer.
	SendPendingFrame() error

	// CurrentState returns the latest decoded state.
	CurrentState() heatpump.State

	// SetState records a desired state for the next answer.
	SetState(heatpump.State)

	// SetFanMode records a desired fan speed for the next answer.
	SetFanMode(heatpump.FanMode)
}

// Publisher receives the abstract state each time it changes.
type Publisher interface {
	PublishState(State)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(State)

// PublishState calls f(s).
func (f PublisherFunc) PublishState(s State) { f(s) }

// Logger is the logging surface used by this package.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return nopLogger{} }
