// Package console is an interactive terminal UI for a single indoor unit.
//
// It drives the climate controller directly, without MQTT, which makes it
// the quickest way to check wiring and bus timing on a new install:
//
//	m        cycle mode
//	+ / -    raise / lower the target temperature
//	f        cycle fan speed
//	e        toggle the eco preset
//	q        quit
//
// The model polls the controller on a short tick. A request that has been
// accepted but not yet reported back by the unit is shown as pending.
package console
