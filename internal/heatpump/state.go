package heatpump

// Mode is the unit's native operating mode code.
type Mode uint8

// Native mode codes. Off is not a mode; it is carried by State.OnOff.
const (
	ModeUnknown Mode = 0
	ModeFan     Mode = 1
	ModeDry     Mode = 2
	ModeCool    Mode = 3
	ModeHeat    Mode = 4
	ModeAuto    Mode = 5
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeFan:
		return "FAN"
	case ModeDry:
		return "DRY"
	case ModeCool:
		return "COOL"
	case ModeHeat:
		return "HEAT"
	case ModeAuto:
		return "AUTO"
	default:
		return "UNKNOWN"
	}
}

// FanMode is the unit's native fan speed code.
type FanMode uint8

// Native fan codes.
const (
	FanAuto   FanMode = 0
	FanQuiet  FanMode = 1
	FanLow    FanMode = 2
	FanMedium FanMode = 3
	FanHigh   FanMode = 4
)

// String returns the fan mode name.
func (f FanMode) String() string {
	switch f {
	case FanAuto:
		return "FAN_AUTO"
	case FanQuiet:
		return "FAN_QUIET"
	case FanLow:
		return "FAN_LOW"
	case FanMedium:
		return "FAN_MEDIUM"
	case FanHigh:
		return "FAN_HIGH"
	default:
		return "FAN_UNKNOWN"
	}
}

// State is the unit's decoded (or desired) state. It is a plain value and
// is always passed and stored by copy.
type State struct {
	// Temperature is the ambient temperature reported by the unit (°C).
	Temperature uint8

	// ControllerTemp is the setpoint as seen or set by the controller (°C).
	ControllerTemp uint8

	ACMode      Mode
	FanMode     FanMode
	EconomyMode bool
	OnOff       bool

	SwingMode         bool
	SwingStep         bool
	Error             bool
	ControllerPresent bool

	// UpdateMagic is an opaque 4-bit value the unit reports. It is carried
	// unchanged into the controller's answers.
	UpdateMagic uint8
}
