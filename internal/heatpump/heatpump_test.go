package heatpump

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

// fakeBus replays scripted reads and records writes. The next failWrites
// writes fail with errBusWrite.
type fakeBus struct {
	mu         sync.Mutex
	reads      [][]byte
	readErr    error
	failWrites int
	written    bytes.Buffer
}

var errBusWrite = errors.New("bus write failed")

func (b *fakeBus) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readErr != nil {
		return 0, b.readErr
	}
	if len(b.reads) == 0 {
		return 0, nil
	}
	n := copy(p, b.reads[0])
	if n < len(b.reads[0]) {
		b.reads[0] = b.reads[0][n:]
	} else {
		b.reads = b.reads[1:]
	}
	return n, nil
}

func (b *fakeBus) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWrites > 0 {
		b.failWrites--
		return 0, errBusWrite
	}
	return b.written.Write(p)
}

func (b *fakeBus) queue(f Frame) {
	raw := f.Encode()
	b.mu.Lock()
	b.reads = append(b.reads, raw[:])
	b.mu.Unlock()
}

func (b *fakeBus) lastWritten(t *testing.T) Frame {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	data := b.written.Bytes()
	if len(data) < FrameSize {
		t.Fatalf("written %d bytes, want at least %d", len(data), FrameSize)
	}
	f, err := DecodeFrame(data[len(data)-FrameSize:])
	if err != nil {
		t.Fatalf("DecodeFrame(written) error = %v", err)
	}
	return f
}

func unitStatus(dest uint8, s State) Frame {
	return Frame{Source: AddrUnit, Dest: dest, Type: MessageStatus, State: s}
}

// =============================================================================
// Frame Tests
// =============================================================================

func TestFrame_EncodeDecode(t *testing.T) {
	in := Frame{
		Source: AddrUnit,
		Dest:   AddrPrimary,
		Type:   MessageStatus,
		Write:  true,
		State: State{
			Temperature:    24,
			ControllerTemp: 22,
			ACMode:         ModeCool,
			FanMode:        FanHigh,
			EconomyMode:    true,
			OnOff:          true,
			SwingMode:      true,
			UpdateMagic:    0x0A,
		},
	}

	raw := in.Encode()
	out, err := DecodeFrame(raw[:])
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if out != in {
		t.Errorf("DecodeFrame(Encode()) = %+v, want %+v", out, in)
	}
}

func TestFrame_UpdateMagicBits(t *testing.T) {
	raw := Frame{State: State{UpdateMagic: 0x0A, SwingMode: true}}.Encode()
	if got := raw[5] ^ 0xFF; got != 0xA4 {
		t.Errorf("byte 5 = 0x%02x, want 0xa4", got)
	}

	// Values wider than four bits are truncated.
	raw = Frame{State: State{UpdateMagic: 0x1F}}.Encode()
	out, err := DecodeFrame(raw[:])
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if out.State.UpdateMagic != 0x0F {
		t.Errorf("UpdateMagic = 0x%x, want 0xf", out.State.UpdateMagic)
	}
}

func TestHeatPump_ReplyCarriesUpdateMagic(t *testing.T) {
	bus := &fakeBus{}
	hp := New()
	hp.Connect(bus, false)

	reported := State{ControllerTemp: 21, OnOff: true, UpdateMagic: 0x05}
	bus.queue(unitStatus(AddrPrimary, reported))
	hp.WaitForFrame()
	_ = hp.SendPendingFrame()
	if got := bus.lastWritten(t).State.UpdateMagic; got != 0x05 {
		t.Errorf("status answer UpdateMagic = 0x%x, want 0x5", got)
	}

	desired := hp.CurrentState()
	desired.ControllerTemp = 23
	hp.SetState(desired)

	bus.queue(unitStatus(AddrPrimary, reported))
	hp.WaitForFrame()
	_ = hp.SendPendingFrame()
	if got := bus.lastWritten(t).State.UpdateMagic; got != 0x05 {
		t.Errorf("write answer UpdateMagic = 0x%x, want 0x5", got)
	}
}

func TestFrame_BytesAreInverted(t *testing.T) {
	raw := Frame{}.Encode()
	for i, b := range raw {
		if b != 0xFF {
			t.Errorf("byte %d = 0x%02x, want 0xFF for an all-zero frame", i, b)
		}
	}
}

func TestDecodeFrame_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "short", raw: []byte{0xFF, 0xFF}},
		{name: "long", raw: bytes.Repeat([]byte{0xFF}, FrameSize+1)},
		{name: "reserved byte set", raw: []byte{0xFE, 0xDF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame(tt.raw)
			if !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("DecodeFrame() error = %v, want ErrInvalidFrame", err)
			}
		})
	}
}

func TestReadFrame_PartialThenGap(t *testing.T) {
	raw := unitStatus(AddrPrimary, State{}).Encode()
	bus := &fakeBus{reads: [][]byte{raw[:3]}}

	_, err := ReadFrame(bus)
	if !errors.Is(err, ErrFrameTimeout) {
		t.Fatalf("ReadFrame() error = %v, want ErrFrameTimeout", err)
	}
}

func TestReadFrame_SplitReads(t *testing.T) {
	want := unitStatus(AddrPrimary, State{Temperature: 20, OnOff: true})
	raw := want.Encode()
	bus := &fakeBus{reads: [][]byte{raw[:2], raw[2:5], raw[5:]}}

	got, err := ReadFrame(bus)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if got != want {
		t.Errorf("ReadFrame() = %+v, want %+v", got, want)
	}
}

// =============================================================================
// HeatPump Tests
// =============================================================================

func TestHeatPump_StatusUpdatesCurrentState(t *testing.T) {
	bus := &fakeBus{}
	hp := New()
	hp.Connect(bus, false)

	reported := State{Temperature: 23, ControllerTemp: 21, ACMode: ModeHeat, FanMode: FanLow, OnOff: true}
	bus.queue(unitStatus(AddrPrimary, reported))

	if !hp.WaitForFrame() {
		t.Fatal("WaitForFrame() = false, want true for frame addressed to controller")
	}
	if got := hp.CurrentState(); got != reported {
		t.Errorf("CurrentState() = %+v, want %+v", got, reported)
	}

	if err := hp.SendPendingFrame(); err != nil {
		t.Fatalf("SendPendingFrame() error = %v", err)
	}
	reply := bus.lastWritten(t)
	if reply.Source != AddrPrimary || reply.Dest != AddrUnit {
		t.Errorf("reply addressed %d->%d, want %d->%d", reply.Source, reply.Dest, AddrPrimary, AddrUnit)
	}
	if reply.Write {
		t.Error("reply.Write = true with no pending update")
	}
	if !reply.State.ControllerPresent {
		t.Error("reply should announce controller presence")
	}
}

func TestHeatPump_SecondaryAddress(t *testing.T) {
	bus := &fakeBus{}
	hp := New()
	hp.Connect(bus, true)

	if hp.Address() != AddrSecondary {
		t.Fatalf("Address() = %d, want %d", hp.Address(), AddrSecondary)
	}

	bus.queue(unitStatus(AddrPrimary, State{Temperature: 19}))
	if hp.WaitForFrame() {
		t.Error("WaitForFrame() = true for frame addressed to another controller")
	}
	if hp.CurrentState().Temperature != 19 {
		t.Error("unit status to another controller should still update current state")
	}
}

func TestHeatPump_IgnoresOwnEcho(t *testing.T) {
	bus := &fakeBus{}
	hp := New()
	hp.Connect(bus, false)

	bus.queue(Frame{Source: AddrPrimary, Dest: AddrUnit, Type: MessageStatus, State: State{Temperature: 40}})
	if hp.WaitForFrame() {
		t.Error("WaitForFrame() = true for echoed frame")
	}
	if hp.CurrentState().Temperature == 40 {
		t.Error("echoed frame should not change current state")
	}
}

func TestHeatPump_SetStateWritesChangedFields(t *testing.T) {
	bus := &fakeBus{}
	hp := New()
	hp.Connect(bus, false)

	bus.queue(unitStatus(AddrPrimary, State{ControllerTemp: 20, ACMode: ModeHeat, OnOff: true}))
	hp.WaitForFrame()
	_ = hp.SendPendingFrame()

	desired := hp.CurrentState()
	desired.ACMode = ModeCool
	desired.ControllerTemp = 18
	hp.SetState(desired)
	hp.SetFanMode(FanHigh)

	if got := hp.CurrentState(); got.ACMode != ModeCool || got.FanMode != FanHigh {
		t.Errorf("CurrentState() = %+v, want pending changes overlaid", got)
	}

	bus.queue(unitStatus(AddrPrimary, State{ControllerTemp: 20, ACMode: ModeHeat, OnOff: true}))
	if !hp.WaitForFrame() {
		t.Fatal("WaitForFrame() = false")
	}
	if err := hp.SendPendingFrame(); err != nil {
		t.Fatalf("SendPendingFrame() error = %v", err)
	}

	reply := bus.lastWritten(t)
	if !reply.Write {
		t.Error("reply.Write = false, want true with pending update")
	}
	if reply.State.ACMode != ModeCool || reply.State.ControllerTemp != 18 || reply.State.FanMode != FanHigh {
		t.Errorf("reply state = %+v, want mode COOL, setpoint 18, fan HIGH", reply.State)
	}
	if !reply.State.OnOff {
		t.Error("unchanged OnOff should be carried through")
	}

	// Next answer is a plain status again.
	bus.queue(unitStatus(AddrPrimary, reply.State))
	hp.WaitForFrame()
	_ = hp.SendPendingFrame()
	if bus.lastWritten(t).Write {
		t.Error("pending update should be cleared after it is written")
	}
}

func TestHeatPump_FailedWriteKeepsPendingUpdate(t *testing.T) {
	bus := &fakeBus{}
	hp := New()
	hp.Connect(bus, false)

	reported := State{ControllerTemp: 22, ACMode: ModeHeat, OnOff: true}
	bus.queue(unitStatus(AddrPrimary, reported))
	hp.WaitForFrame()
	_ = hp.SendPendingFrame()

	desired := hp.CurrentState()
	desired.ControllerTemp = 25
	hp.SetState(desired)

	bus.mu.Lock()
	bus.failWrites = 1
	bus.mu.Unlock()

	bus.queue(unitStatus(AddrPrimary, reported))
	if !hp.WaitForFrame() {
		t.Fatal("WaitForFrame() = false")
	}
	if err := hp.SendPendingFrame(); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("SendPendingFrame() error = %v, want ErrWriteFailed", err)
	}
	if got := hp.CurrentState().ControllerTemp; got != 25 {
		t.Errorf("CurrentState().ControllerTemp after failed write = %d, want 25", got)
	}

	// The unit still reports the old setpoint; the next answer retries.
	bus.queue(unitStatus(AddrPrimary, reported))
	if !hp.WaitForFrame() {
		t.Fatal("WaitForFrame() = false")
	}
	if err := hp.SendPendingFrame(); err != nil {
		t.Fatalf("SendPendingFrame() error = %v", err)
	}

	reply := bus.lastWritten(t)
	if !reply.Write || reply.State.ControllerTemp != 25 {
		t.Errorf("retry reply write=%v setpoint=%d, want write=true setpoint=25",
			reply.Write, reply.State.ControllerTemp)
	}
	if got := hp.CurrentState().ControllerTemp; got != 25 {
		t.Errorf("CurrentState().ControllerTemp = %d, want 25", got)
	}
	if got := hp.Stats().FramesTx; got != 2 {
		t.Errorf("Stats().FramesTx = %d, want 2", got)
	}
}

func TestHeatPump_SetStateDuringWriteStaysPending(t *testing.T) {
	bus := &fakeBus{}
	hp := New()
	hp.Connect(bus, false)

	reported := State{ControllerTemp: 22, ACMode: ModeHeat, OnOff: true}
	bus.queue(unitStatus(AddrPrimary, reported))
	hp.WaitForFrame()
	_ = hp.SendPendingFrame()

	desired := hp.CurrentState()
	desired.ControllerTemp = 25
	hp.SetState(desired)

	bus.queue(unitStatus(AddrPrimary, reported))
	hp.WaitForFrame()

	// A newer setpoint arrives between preparing and sending the answer.
	desired.ControllerTemp = 27
	hp.SetState(desired)

	if err := hp.SendPendingFrame(); err != nil {
		t.Fatalf("SendPendingFrame() error = %v", err)
	}
	if got := bus.lastWritten(t).State.ControllerTemp; got != 25 {
		t.Errorf("sent setpoint = %d, want 25", got)
	}

	bus.queue(unitStatus(AddrPrimary, State{ControllerTemp: 25, ACMode: ModeHeat, OnOff: true}))
	hp.WaitForFrame()
	_ = hp.SendPendingFrame()

	reply := bus.lastWritten(t)
	if !reply.Write || reply.State.ControllerTemp != 27 {
		t.Errorf("next reply write=%v setpoint=%d, want write=true setpoint=27",
			reply.Write, reply.State.ControllerTemp)
	}
}

func TestHeatPump_LoginReply(t *testing.T) {
	bus := &fakeBus{}
	hp := New()
	hp.Connect(bus, false)

	bus.queue(Frame{Source: AddrUnit, Dest: AddrPrimary, Type: MessageLogin})
	if !hp.WaitForFrame() {
		t.Fatal("WaitForFrame() = false for login frame")
	}
	_ = hp.SendPendingFrame()

	reply := bus.lastWritten(t)
	if reply.Type != MessageLogin {
		t.Errorf("reply.Type = %s, want LOGIN", reply.Type)
	}
}

func TestHeatPump_DecodeErrorCounted(t *testing.T) {
	bus := &fakeBus{reads: [][]byte{{0xFE, 0xDF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}}}
	hp := New()
	hp.Connect(bus, false)

	if hp.WaitForFrame() {
		t.Error("WaitForFrame() = true for invalid frame")
	}
	if got := hp.Stats().DecodeErrors; got != 1 {
		t.Errorf("Stats().DecodeErrors = %d, want 1", got)
	}
}

func TestHeatPump_SendWithoutPending(t *testing.T) {
	hp := New()
	if err := hp.SendPendingFrame(); err != nil {
		t.Errorf("SendPendingFrame() with nothing pending error = %v, want nil", err)
	}
}

func TestHeatPump_OnFrame(t *testing.T) {
	bus := &fakeBus{}
	hp := New()
	hp.Connect(bus, false)

	var seen []Frame
	hp.OnFrame(func(f Frame) { seen = append(seen, f) })

	bus.queue(unitStatus(AddrPrimary, State{Temperature: 21}))
	bus.queue(Frame{Source: AddrPrimary, Dest: AddrUnit, Type: MessageStatus})
	hp.WaitForFrame()
	hp.WaitForFrame()

	if len(seen) != 2 {
		t.Fatalf("OnFrame saw %d frames, want 2", len(seen))
	}
	if seen[1].Source != AddrPrimary {
		t.Errorf("second frame source = %d, want echo from %d", seen[1].Source, AddrPrimary)
	}
}
