package climate

import "time"

// Default bus and lock timings.
const (
	DefaultSettleDelay        = 60 * time.Millisecond
	DefaultPumpLockTimeout    = 200 * time.Millisecond
	DefaultUpdateLockTimeout  = 200 * time.Millisecond
	DefaultControlLockTimeout = 1000 * time.Millisecond
)

// Timing holds the pump and controller durations.
type Timing struct {
	// SettleDelay is the pause between receiving a frame and answering it.
	SettleDelay time.Duration

	// PumpLockTimeout bounds the pump's wait for the shared state.
	PumpLockTimeout time.Duration

	// UpdateLockTimeout bounds UpdateState's wait for the shared state.
	UpdateLockTimeout time.Duration

	// ControlLockTimeout bounds Control's wait for the shared state.
	ControlLockTimeout time.Duration
}

// DefaultTiming returns the timings the indoor unit expects.
func DefaultTiming() Timing {
	return Timing{
		SettleDelay:        DefaultSettleDelay,
		PumpLockTimeout:    DefaultPumpLockTimeout,
		UpdateLockTimeout:  DefaultUpdateLockTimeout,
		ControlLockTimeout: DefaultControlLockTimeout,
	}
}

// withDefaults fills zero durations from DefaultTiming.
func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.SettleDelay <= 0 {
		t.SettleDelay = d.SettleDelay
	}
	if t.PumpLockTimeout <= 0 {
		t.PumpLockTimeout = d.PumpLockTimeout
	}
	if t.UpdateLockTimeout <= 0 {
		t.UpdateLockTimeout = d.UpdateLockTimeout
	}
	if t.ControlLockTimeout <= 0 {
		t.ControlLockTimeout = d.ControlLockTimeout
	}
	return t
}
