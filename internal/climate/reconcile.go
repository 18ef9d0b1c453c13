package climate

import "github.com/nerrad567/fujitsu-bridge/internal/heatpump"

// Reconcile folds a device state onto the previously reported abstract
// state. It returns the next state and whether anything changed.
//
// Rules, applied in order:
//
//  1. CurrentTemperature follows device Temperature.
//  2. TargetTemperature follows device ControllerTemp.
//  3. Mode follows the translated ACMode, only while the unit is on and the
//     code translates.
//  4. FanMode follows the translated device fan when it translates.
//  5. Preset is ECO exactly when EconomyMode is set, otherwise NONE.
//  6. A unit that is off reports ModeOff, overriding rule 3.
//
// Codes without a translation leave the corresponding field untouched.
func Reconcile(device heatpump.State, prior State) (State, bool) {
	next := prior
	changed := false

	if current := float64(device.Temperature); next.CurrentTemperature != current {
		next.CurrentTemperature = current
		changed = true
	}

	if target := float64(device.ControllerTemp); next.TargetTemperature != target {
		next.TargetTemperature = target
		changed = true
	}

	if mode, ok := ModeFromDevice(device.ACMode); ok && device.OnOff && next.Mode != mode {
		next.Mode = mode
		changed = true
	}

	if fan, ok := FanFromDevice(device.FanMode); ok && next.FanMode != fan {
		next.FanMode = fan
		changed = true
	}

	switch {
	case device.EconomyMode && next.Preset != PresetEco:
		next.Preset = PresetEco
		changed = true
	case !device.EconomyMode && next.Preset == PresetEco:
		next.Preset = PresetNone
		changed = true
	}

	if !device.OnOff && next.Mode != ModeOff {
		next.Mode = ModeOff
		changed = true
	}

	return next, changed
}
