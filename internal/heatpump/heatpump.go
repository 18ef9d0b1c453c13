package heatpump

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// readErrorBackoff throttles WaitForFrame when the transport keeps failing
// (port unplugged, socket closed) so the caller's loop does not spin.
const readErrorBackoff = 250 * time.Millisecond

// Pending update field flags.
const (
	fieldOnOff uint8 = 1 << iota
	fieldMode
	fieldSetpoint
	fieldEconomy
	fieldSwing
	fieldFan
)

// Stats holds protocol counters.
type Stats struct {
	FramesRx     uint64    `json:"frames_rx"`
	FramesTx     uint64    `json:"frames_tx"`
	DecodeErrors uint64    `json:"decode_errors"`
	ReadErrors   uint64    `json:"read_errors"`
	LastFrame    time.Time `json:"last_frame"`
}

// HeatPump emulates a wired wall controller on the indoor unit's bus.
//
// The unit polls; the controller answers each frame addressed to it. Desired
// changes recorded with SetState and SetFanMode ride on the next answer as a
// write frame.
//
// WaitForFrame and SendPendingFrame must be driven from a single goroutine.
// All other methods are safe for concurrent use.
type HeatPump struct {
	rw      io.ReadWriter
	address uint8

	mu      sync.Mutex
	current State
	update  State
	fields  uint8
	reply   *Frame
	onFrame func(Frame)

	// Fields carried by reply. They stay pending until the write succeeds.
	replyFields uint8

	framesRx     atomic.Uint64
	framesTx     atomic.Uint64
	decodeErrors atomic.Uint64
	readErrors   atomic.Uint64
	lastFrame    atomic.Int64
}

// New returns an unconnected HeatPump.
func New() *HeatPump {
	return &HeatPump{address: AddrPrimary}
}

// Connect attaches the bus transport. When secondary is true the controller
// answers as the secondary controller, leaving the primary address to a
// physical wall unit.
func (h *HeatPump) Connect(rw io.ReadWriter, secondary bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rw = rw
	h.address = AddrPrimary
	if secondary {
		h.address = AddrSecondary
	}
}

// Address returns the controller address used on the bus.
func (h *HeatPump) Address() uint8 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.address
}

// WaitForFrame reads the next frame from the bus. It returns true when a
// frame addressed to this controller was consumed and an answer is pending.
// It is bounded by the transport's read timeout.
func (h *HeatPump) WaitForFrame() bool {
	h.mu.Lock()
	rw := h.rw
	h.mu.Unlock()

	if rw == nil {
		time.Sleep(readErrorBackoff)
		return false
	}

	frame, err := ReadFrame(rw)
	switch {
	case err == nil:
	case errors.Is(err, ErrFrameTimeout):
		return false
	case errors.Is(err, ErrInvalidFrame):
		h.decodeErrors.Add(1)
		return false
	default:
		h.readErrors.Add(1)
		time.Sleep(readErrorBackoff)
		return false
	}

	h.framesRx.Add(1)
	h.lastFrame.Store(time.Now().UnixNano())

	h.mu.Lock()
	hook := h.onFrame
	ok := h.handleFrame(frame)
	h.mu.Unlock()

	if hook != nil {
		hook(frame)
	}
	return ok
}

// OnFrame registers fn to be called with every decoded frame seen on the
// bus, including echoes of our own answers. Used by the monitor command.
func (h *HeatPump) OnFrame(fn func(Frame)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFrame = fn
}

// handleFrame updates state from a unit frame and prepares the answer.
// Caller holds h.mu.
func (h *HeatPump) handleFrame(f Frame) bool {
	// Our own transmission echoed back on the single-wire bus.
	if f.Source == h.address {
		return false
	}

	if f.Source == AddrUnit && f.Type == MessageStatus {
		h.current = f.State
	}

	if f.Dest != h.address {
		return false
	}

	reply := Frame{
		Source: h.address,
		Dest:   AddrUnit,
		Type:   f.Type,
		State:  h.current,
	}
	reply.State.ControllerPresent = true

	h.replyFields = 0
	switch f.Type {
	case MessageLogin:
		reply.State = State{ControllerPresent: true}
	case MessageStatus:
		if h.fields != 0 {
			reply.State = h.merged()
			reply.State.ControllerPresent = true
			reply.Write = true
			h.replyFields = h.fields
		}
	default:
		reply.Type = MessageStatus
	}

	h.reply = &reply
	return true
}

// commit folds the fields of a successfully written answer into the current
// state. A field is cleared from the pending set only when it still holds the
// value that was sent, so a SetState that raced the write is kept.
// Caller holds h.mu.
func (h *HeatPump) commit(sent uint8, s State) {
	type field struct {
		bit  uint8
		same bool
		set  func(*State)
	}
	fields := []field{
		{fieldOnOff, h.update.OnOff == s.OnOff, func(c *State) { c.OnOff = s.OnOff }},
		{fieldMode, h.update.ACMode == s.ACMode, func(c *State) { c.ACMode = s.ACMode }},
		{fieldSetpoint, h.update.ControllerTemp == s.ControllerTemp, func(c *State) { c.ControllerTemp = s.ControllerTemp }},
		{fieldEconomy, h.update.EconomyMode == s.EconomyMode, func(c *State) { c.EconomyMode = s.EconomyMode }},
		{fieldSwing, h.update.SwingMode == s.SwingMode, func(c *State) { c.SwingMode = s.SwingMode }},
		{fieldFan, h.update.FanMode == s.FanMode, func(c *State) { c.FanMode = s.FanMode }},
	}
	for _, f := range fields {
		if sent&f.bit == 0 {
			continue
		}
		f.set(&h.current)
		if f.same {
			h.fields &^= f.bit
		}
	}
}

// SendPendingFrame writes the pending answer, if any.
func (h *HeatPump) SendPendingFrame() error {
	h.mu.Lock()
	rw := h.rw
	reply := h.reply
	sent := h.replyFields
	h.reply = nil
	h.replyFields = 0
	h.mu.Unlock()

	if reply == nil {
		return nil
	}
	if rw == nil {
		return ErrNotConnected
	}

	// On failure the pending fields are untouched and ride on the next answer.
	raw := reply.Encode()
	if _, err := rw.Write(raw[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	h.framesTx.Add(1)

	if sent != 0 {
		h.mu.Lock()
		h.commit(sent, reply.State)
		h.mu.Unlock()
	}
	return nil
}

// CurrentState returns the unit's last reported state with any desired
// changes that have not yet been written applied on top.
func (h *HeatPump) CurrentState() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.merged()
}

// SetState records s as the desired state. Only fields that differ from the
// current state are written on the next answer.
func (h *HeatPump) SetState(s State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cur := h.merged()
	if s.OnOff != cur.OnOff {
		h.update.OnOff = s.OnOff
		h.fields |= fieldOnOff
	}
	if s.ACMode != cur.ACMode {
		h.update.ACMode = s.ACMode
		h.fields |= fieldMode
	}
	if s.ControllerTemp != cur.ControllerTemp {
		h.update.ControllerTemp = s.ControllerTemp
		h.fields |= fieldSetpoint
	}
	if s.EconomyMode != cur.EconomyMode {
		h.update.EconomyMode = s.EconomyMode
		h.fields |= fieldEconomy
	}
	if s.SwingMode != cur.SwingMode {
		h.update.SwingMode = s.SwingMode
		h.fields |= fieldSwing
	}
}

// SetFanMode records a fan speed change to write on the next answer.
func (h *HeatPump) SetFanMode(f FanMode) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.update.FanMode = f
	h.fields |= fieldFan
}

// merged applies pending field updates to the current state.
// Caller holds h.mu.
func (h *HeatPump) merged() State {
	s := h.current
	if h.fields&fieldOnOff != 0 {
		s.OnOff = h.update.OnOff
	}
	if h.fields&fieldMode != 0 {
		s.ACMode = h.update.ACMode
	}
	if h.fields&fieldSetpoint != 0 {
		s.ControllerTemp = h.update.ControllerTemp
	}
	if h.fields&fieldEconomy != 0 {
		s.EconomyMode = h.update.EconomyMode
	}
	if h.fields&fieldSwing != 0 {
		s.SwingMode = h.update.SwingMode
	}
	if h.fields&fieldFan != 0 {
		s.FanMode = h.update.FanMode
	}
	return s
}

// Stats returns a snapshot of the protocol counters.
func (h *HeatPump) Stats() Stats {
	s := Stats{
		FramesRx:     h.framesRx.Load(),
		FramesTx:     h.framesTx.Load(),
		DecodeErrors: h.decodeErrors.Load(),
		ReadErrors:   h.readErrors.Load(),
	}
	if ns := h.lastFrame.Load(); ns != 0 {
		s.LastFrame = time.Unix(0, ns)
	}
	return s
}
