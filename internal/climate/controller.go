package climate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/fujitsu-bridge/internal/heatpump"
)

// Options configures a Controller.
type Options struct {
	// Protocol is the heat-pump protocol layer. Required.
	Protocol Protocol

	// Timing overrides the default durations. Zero fields use defaults.
	Timing Timing

	// Traits overrides DefaultTraits.
	Traits *Traits

	// Publisher receives each changed state. Optional.
	Publisher Publisher

	// Logger is optional.
	Logger Logger
}

// Stats holds controller and pump counters.
type Stats struct {
	// UpdateSkips counts UpdateState calls skipped on lock timeout.
	UpdateSkips uint64 `json:"update_skips"`

	// ControlTimeouts counts Control calls that returned ErrLockTimeout.
	ControlTimeouts uint64 `json:"control_timeouts"`

	// Publishes counts states handed to the publisher.
	Publishes uint64 `json:"publishes"`

	// Controls counts applied control requests.
	Controls uint64 `json:"controls"`

	Pump PumpStats `json:"pump"`
}

// Controller is the foreground side of the bridge. It reconciles the shared
// device state into an abstract State and applies control requests.
//
// All methods are safe for concurrent use.
type Controller struct {
	proto     Protocol
	timing    Timing
	traits    Traits
	publisher Publisher
	logger    Logger

	shared *SharedState
	pump   *Pump

	// updateMu serialises reconciliation so publishes stay in order.
	updateMu sync.Mutex
	stateMu  sync.RWMutex
	state    State

	updateSkips     atomic.Uint64
	controlTimeouts atomic.Uint64
	publishes       atomic.Uint64
	controls        atomic.Uint64
}

// NewController creates a Controller. The shared state is seeded from the
// protocol when Setup is called.
func NewController(opts Options) (*Controller, error) {
	if opts.Protocol == nil {
		return nil, ErrNoProtocol
	}

	traits := DefaultTraits()
	if opts.Traits != nil {
		traits = *opts.Traits
	}
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	timing := opts.Timing.withDefaults()

	c := &Controller{
		proto:     opts.Protocol,
		timing:    timing,
		traits:    traits,
		publisher: opts.Publisher,
		logger:    logger,
		shared:    NewSharedState(heatpump.State{}),
		state:     InitialState(),
	}
	c.pump = NewPump(c.proto, c.shared, timing, logger)
	return c, nil
}

// Setup seeds the shared state from the protocol and starts the pump.
// The protocol's transport must already be connected.
func (c *Controller) Setup(ctx context.Context) error {
	err := c.pump.startWith(ctx, func() error {
		err := c.shared.With(ctx, c.timing.ControlLockTimeout, func(s *heatpump.State) {
			*s = c.proto.CurrentState()
		})
		if err != nil {
			return fmt.Errorf("seeding shared state: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("climate controller started",
		"settle_delay", c.timing.SettleDelay,
		"update_lock_timeout", c.timing.UpdateLockTimeout,
		"control_lock_timeout", c.timing.ControlLockTimeout,
	)
	return nil
}

// Stop stops the pump and waits for it to exit.
func (c *Controller) Stop() {
	c.pump.Stop()
}

// PumpDone is closed when the pump goroutine exits.
func (c *Controller) PumpDone() <-chan struct{} {
	return c.pump.Done()
}

// UpdateState reconciles the shared device state into the abstract state
// and publishes it when something changed. It returns whether a publish
// happened. If the shared state is busy the tick is skipped.
func (c *Controller) UpdateState(ctx context.Context) bool {
	c.updateMu.Lock()
	defer c.updateMu.Unlock()

	prior := c.State()

	var (
		device  heatpump.State
		next    State
		changed bool
	)
	err := c.shared.With(ctx, c.timing.UpdateLockTimeout, func(s *heatpump.State) {
		device = *s
		next, changed = Reconcile(device, prior)
	})
	if err != nil {
		c.updateSkips.Add(1)
		c.logger.Debug("shared state busy, skipping update", "error", err)
		return false
	}

	c.logUntranslated(device)
	if !changed {
		return false
	}
	c.logTransitions(device, prior, next)

	c.stateMu.Lock()
	c.state = next
	c.stateMu.Unlock()

	c.logger.Debug("publishing state",
		"mode", next.Mode,
		"fan_mode", next.FanMode,
		"preset", next.Preset,
		"current_temperature", next.CurrentTemperature,
		"target_temperature", next.TargetTemperature,
	)
	c.publishes.Add(1)
	if c.publisher != nil {
		c.publisher.PublishState(next)
	}
	return true
}

// Control applies a request to the shared device state for the pump to
// transmit. The abstract state is not changed here; it follows once the
// device state is reconciled.
//
// Returns ErrLockTimeout if the shared state could not be acquired.
func (c *Controller) Control(ctx context.Context, req Request) error {
	err := c.shared.With(ctx, c.timing.ControlLockTimeout, func(s *heatpump.State) {
		c.apply(s, req)
	})
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			c.controlTimeouts.Add(1)
			c.logger.Warn("control request timed out waiting for shared state")
		}
		return err
	}
	c.controls.Add(1)
	return nil
}

// apply writes req into s. Caller holds the shared lock.
func (c *Controller) apply(s *heatpump.State, req Request) {
	updated := false

	if req.Mode != nil {
		mode := *req.Mode
		c.logger.Debug("setting mode", "mode", mode)
		if code, ok := ModeToDevice(mode); ok {
			s.ACMode = code
			s.OnOff = true
		}
		if mode == ModeOff {
			s.OnOff = false
		}
		updated = true
	}

	if req.TargetTemperature != nil {
		c.logger.Debug("setting temperature", "target_temperature", *req.TargetTemperature)
		s.ControllerTemp = setpoint(*req.TargetTemperature)
		updated = true
	}

	if req.Preset != nil {
		c.logger.Debug("setting preset", "preset", *req.Preset)
		s.EconomyMode = *req.Preset == PresetEco
		updated = true
	}

	if req.FanMode != nil {
		c.logger.Debug("setting fan mode", "fan_mode", *req.FanMode)
		if code, ok := FanToDevice(*req.FanMode); ok {
			c.proto.SetFanMode(code)
		}
		updated = true
	}

	if updated {
		c.proto.SetState(*s)
	}
}

// setpoint converts a requested temperature to the device's whole-degree
// 7-bit field.
func setpoint(v float64) uint8 {
	r := math.Round(v)
	switch {
	case math.IsNaN(r) || r < 0:
		return 0
	case r > 0x7F:
		return 0x7F
	}
	return uint8(r)
}

// State returns the last reconciled abstract state.
func (c *Controller) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Traits returns the entity capabilities.
func (c *Controller) Traits() Traits {
	return c.traits
}

// Stats returns a snapshot of the controller and pump counters.
func (c *Controller) Stats() Stats {
	return Stats{
		UpdateSkips:     c.updateSkips.Load(),
		ControlTimeouts: c.controlTimeouts.Load(),
		Publishes:       c.publishes.Load(),
		Controls:        c.controls.Load(),
		Pump:            c.pump.Stats(),
	}
}

func (c *Controller) logUntranslated(device heatpump.State) {
	if _, ok := ModeFromDevice(device.ACMode); !ok && device.OnOff {
		c.logger.Debug("device mode has no translation", "code", device.ACMode)
	}
	if _, ok := FanFromDevice(device.FanMode); !ok {
		c.logger.Debug("device fan mode has no translation", "code", device.FanMode)
	}
}

func (c *Controller) logTransitions(device heatpump.State, prior, next State) {
	if !device.OnOff && prior.Mode != ModeOff {
		c.logger.Debug("controller turned off unit")
	}
	if prior.Preset != PresetEco && next.Preset == PresetEco {
		c.logger.Debug("economy mode turned on by controller")
	}
	if prior.Preset == PresetEco && next.Preset != PresetEco {
		c.logger.Debug("economy mode turned off by controller")
	}
}
