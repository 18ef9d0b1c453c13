package climate

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Mode is the abstract operating mode.
type Mode string

// Abstract modes.
const (
	ModeOff     Mode = "off"
	ModeAuto    Mode = "auto"
	ModeHeat    Mode = "heat"
	ModeCool    Mode = "cool"
	ModeDry     Mode = "dry"
	ModeFanOnly Mode = "fan_only"
)

// FanMode is the abstract fan speed. The empty value means unset.
type FanMode string

// Abstract fan modes.
const (
	FanAuto   FanMode = "auto"
	FanLow    FanMode = "low"
	FanMedium FanMode = "medium"
	FanHigh   FanMode = "high"
)

// Preset is the abstract preset.
type Preset string

// Abstract presets.
const (
	PresetNone Preset = "none"
	PresetEco  Preset = "eco"
)

// State is the climate entity as reported to observers.
type State struct {
	CurrentTemperature float64 `json:"current_temperature"`
	TargetTemperature  float64 `json:"target_temperature"`
	Mode               Mode    `json:"mode"`
	FanMode            FanMode `json:"fan_mode,omitempty"`
	Preset             Preset  `json:"preset"`
}

// InitialState is the state before the first reconciliation.
func InitialState() State {
	return State{Mode: ModeOff, Preset: PresetNone}
}

// Request is a control request. Nil fields are left unchanged.
type Request struct {
	Mode              *Mode    `json:"mode,omitempty"`
	TargetTemperature *float64 `json:"target_temperature,omitempty"`
	Preset            *Preset  `json:"preset,omitempty"`
	FanMode           *FanMode `json:"fan_mode,omitempty"`
}

// Empty reports whether the request asks for nothing.
func (r Request) Empty() bool {
	return r.Mode == nil && r.TargetTemperature == nil && r.Preset == nil && r.FanMode == nil
}

// Traits describes what the entity supports.
type Traits struct {
	SupportsCurrentTemperature bool      `json:"supports_current_temperature"`
	Modes                      []Mode    `json:"modes"`
	MinTemperature             float64   `json:"min_temperature"`
	MaxTemperature             float64   `json:"max_temperature"`
	TemperatureStep            float64   `json:"temperature_step"`
	FanModes                   []FanMode `json:"fan_modes"`
	Presets                    []Preset  `json:"presets"`
}

// DefaultTraits returns the capabilities of a Fujitsu indoor unit.
func DefaultTraits() Traits {
	return Traits{
		SupportsCurrentTemperature: true,
		Modes:                      []Mode{ModeAuto, ModeHeat, ModeFanOnly, ModeDry, ModeCool, ModeOff},
		MinTemperature:             16,
		MaxTemperature:             30,
		TemperatureStep:            1,
		FanModes:                   []FanMode{FanAuto, FanLow, FanMedium, FanHigh},
		Presets:                    []Preset{PresetEco, PresetNone},
	}
}

// Validate checks a request against the traits. All problems are reported
// in a single error wrapping ErrInvalidRequest.
func (t Traits) Validate(req Request) error {
	var problems []string

	if req.Empty() {
		problems = append(problems, "no fields set")
	}
	if req.Mode != nil && !slices.Contains(t.Modes, *req.Mode) {
		problems = append(problems, fmt.Sprintf("unsupported mode %q", *req.Mode))
	}
	if req.FanMode != nil && !slices.Contains(t.FanModes, *req.FanMode) {
		problems = append(problems, fmt.Sprintf("unsupported fan mode %q", *req.FanMode))
	}
	if req.Preset != nil && !slices.Contains(t.Presets, *req.Preset) {
		problems = append(problems, fmt.Sprintf("unsupported preset %q", *req.Preset))
	}
	if req.TargetTemperature != nil {
		v := *req.TargetTemperature
		// NaN fails every comparison, so check it before the range.
		if math.IsNaN(v) || math.IsInf(v, 0) {
			problems = append(problems, "target temperature is not a finite number")
		} else if v < t.MinTemperature || v > t.MaxTemperature {
			problems = append(problems, fmt.Sprintf("target temperature %.1f outside %.0f-%.0f",
				v, t.MinTemperature, t.MaxTemperature))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeOff, ModeAuto, ModeHeat, ModeCool, ModeDry, ModeFanOnly:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, s)
}

// ParseFanMode parses a fan mode name, case-insensitively.
func ParseFanMode(s string) (FanMode, error) {
	f := FanMode(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FanAuto, FanLow, FanMedium, FanHigh:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown fan mode %q", ErrInvalidRequest, s)
}

// ParsePreset parses a preset name, case-insensitively.
func ParsePreset(s string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PresetNone, PresetEco:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown preset %q", ErrInvalidRequest, s)
}
