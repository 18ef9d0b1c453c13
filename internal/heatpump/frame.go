package heatpump

import (
	"errors"
	"fmt"
	"io"
)

// FrameSize is the fixed length of every frame on the controller bus.
const FrameSize = 8

// Bus addresses.
const (
	AddrUnit      uint8 = 1
	AddrPrimary   uint8 = 32
	AddrSecondary uint8 = 33
)

// MessageType identifies the kind of frame.
type MessageType uint8

// Message types.
const (
	MessageStatus  MessageType = 0
	MessageError   MessageType = 1
	MessageLogin   MessageType = 2
	MessageUnknown MessageType = 3
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case MessageStatus:
		return "STATUS"
	case MessageError:
		return "ERROR"
	case MessageLogin:
		return "LOGIN"
	default:
		return "UNKNOWN"
	}
}

// Bit layout (before inversion).
//
//	byte 0: source address
//	byte 1: destination address (bits 0-6)
//	byte 2: message type (bits 4-5), write flag (bit 3)
//	byte 3: on/off (bit 0), mode (bits 1-3), fan (bits 4-6), error (bit 7)
//	byte 4: setpoint (bits 0-6), economy (bit 7)
//	byte 5: swing step (bit 1), swing (bit 2), update magic (bits 4-7)
//	byte 6: controller present (bit 0), ambient temperature (bits 1-6)
//	byte 7: reserved
const (
	destMask     = 0x7F
	typeShift    = 4
	typeMask     = 0x30
	writeBit     = 0x08
	onOffBit     = 0x01
	modeShift    = 1
	modeMask     = 0x0E
	fanShift     = 4
	fanMask      = 0x70
	errorBit     = 0x80
	setpointMask = 0x7F
	economyBit   = 0x80
	swingStepBit = 0x02
	swingBit     = 0x04
	magicShift   = 4
	magicMask    = 0xF0
	presentBit   = 0x01
	ambientShift = 1
	ambientMask  = 0x7E
)

// Frame is one decoded bus frame.
type Frame struct {
	Source uint8
	Dest   uint8
	Type   MessageType
	Write  bool
	State  State
}

// Encode returns the wire representation of the frame (inverted bytes).
func (f Frame) Encode() [FrameSize]byte {
	var b [FrameSize]byte

	b[0] = f.Source
	b[1] = f.Dest & destMask
	b[2] = (uint8(f.Type) << typeShift) & typeMask
	if f.Write {
		b[2] |= writeBit
	}

	s := f.State
	if s.OnOff {
		b[3] |= onOffBit
	}
	b[3] |= (uint8(s.ACMode) << modeShift) & modeMask
	b[3] |= (uint8(s.FanMode) << fanShift) & fanMask
	if s.Error {
		b[3] |= errorBit
	}

	b[4] = s.ControllerTemp & setpointMask
	if s.EconomyMode {
		b[4] |= economyBit
	}

	if s.SwingStep {
		b[5] |= swingStepBit
	}
	if s.SwingMode {
		b[5] |= swingBit
	}
	b[5] |= (s.UpdateMagic << magicShift) & magicMask

	if s.ControllerPresent {
		b[6] |= presentBit
	}
	b[6] |= (s.Temperature << ambientShift) & ambientMask

	for i := range b {
		b[i] ^= 0xFF
	}
	return b
}

// DecodeFrame parses a wire frame.
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) != FrameSize {
		return Frame{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidFrame, len(raw), FrameSize)
	}

	var b [FrameSize]byte
	for i := range b {
		b[i] = raw[i] ^ 0xFF
	}

	if b[7] != 0 {
		return Frame{}, fmt.Errorf("%w: reserved byte is 0x%02x", ErrInvalidFrame, b[7])
	}

	return Frame{
		Source: b[0],
		Dest:   b[1] & destMask,
		Type:   MessageType((b[2] & typeMask) >> typeShift),
		Write:  b[2]&writeBit != 0,
		State: State{
			OnOff:             b[3]&onOffBit != 0,
			ACMode:            Mode((b[3] & modeMask) >> modeShift),
			FanMode:           FanMode((b[3] & fanMask) >> fanShift),
			Error:             b[3]&errorBit != 0,
			ControllerTemp:    b[4] & setpointMask,
			EconomyMode:       b[4]&economyBit != 0,
			SwingStep:         b[5]&swingStepBit != 0,
			SwingMode:         b[5]&swingBit != 0,
			UpdateMagic:       (b[5] & magicMask) >> magicShift,
			ControllerPresent: b[6]&presentBit != 0,
			Temperature:       (b[6] & ambientMask) >> ambientShift,
		},
	}, nil
}

// ReadFrame reads exactly one frame from r.
//
// A read that returns no data is treated as an inter-frame gap: any partial
// frame is discarded and ErrFrameTimeout is returned, which resynchronises
// the reader on the next frame boundary.
func ReadFrame(r io.Reader) (Frame, error) {
	var buf [FrameSize]byte
	n := 0
	for n < FrameSize {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			if errors.Is(err, io.EOF) && n == FrameSize {
				break
			}
			return Frame{}, fmt.Errorf("%w: %w", ErrReadFailed, err)
		}
		if m == 0 {
			return Frame{}, ErrFrameTimeout
		}
	}
	return DecodeFrame(buf[:])
}

// String renders the frame for monitoring output.
func (f Frame) String() string {
	s := f.State
	return fmt.Sprintf("%d->%d %s write=%t on=%t mode=%s fan=%s setpoint=%d ambient=%d eco=%t swing=%t err=%t",
		f.Source, f.Dest, f.Type, f.Write, s.OnOff, s.ACMode, s.FanMode,
		s.ControllerTemp, s.Temperature, s.EconomyMode, s.SwingMode, s.Error)
}
