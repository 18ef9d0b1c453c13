package climate

import "github.com/nerrad567/fujitsu-bridge/internal/heatpump"

// Off has no device mode code; it is carried by heatpump.State.OnOff.
var modeTable = []struct {
	device   heatpump.Mode
	abstract Mode
}{
	{heatpump.ModeFan, ModeFanOnly},
	{heatpump.ModeDry, ModeDry},
	{heatpump.ModeCool, ModeCool},
	{heatpump.ModeHeat, ModeHeat},
	{heatpump.ModeAuto, ModeAuto},
}

// heatpump.FanQuiet has no abstract counterpart.
var fanTable = []struct {
	device   heatpump.FanMode
	abstract FanMode
}{
	{heatpump.FanAuto, FanAuto},
	{heatpump.FanHigh, FanHigh},
	{heatpump.FanMedium, FanMedium},
	{heatpump.FanLow, FanLow},
}

// ModeFromDevice translates a device mode code. ok is false when the code
// has no abstract counterpart.
func ModeFromDevice(m heatpump.Mode) (Mode, bool) {
	for _, e := range modeTable {
		if e.device == m {
			return e.abstract, true
		}
	}
	return "", false
}

// ModeToDevice translates an abstract mode. ok is false for ModeOff and
// anything not in the table.
func ModeToDevice(m Mode) (heatpump.Mode, bool) {
	for _, e := range modeTable {
		if e.abstract == m {
			return e.device, true
		}
	}
	return heatpump.ModeUnknown, false
}

// FanFromDevice translates a device fan code.
func FanFromDevice(f heatpump.FanMode) (FanMode, bool) {
	for _, e := range fanTable {
		if e.device == f {
			return e.abstract, true
		}
	}
	return "", false
}

// FanToDevice translates an abstract fan mode.
func FanToDevice(f FanMode) (heatpump.FanMode, bool) {
	for _, e := range fanTable {
		if e.abstract == f {
			return e.device, true
		}
	}
	return heatpump.FanAuto, false
}
