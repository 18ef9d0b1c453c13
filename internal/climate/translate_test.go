package climate

import (
	"testing"

	"github.com/nerrad567/fujitsu-bridge/internal/heatpump"
)

func TestModeTranslation_RoundTrip(t *testing.T) {
	for _, code := range []heatpump.Mode{
		heatpump.ModeFan, heatpump.ModeDry, heatpump.ModeCool, heatpump.ModeHeat, heatpump.ModeAuto,
	} {
		t.Run(code.String(), func(t *testing.T) {
			m, ok := ModeFromDevice(code)
			if !ok {
				t.Fatalf("ModeFromDevice(%s) ok = false", code)
			}
			back, ok := ModeToDevice(m)
			if !ok || back != code {
				t.Errorf("ModeToDevice(%q) = %s, %t; want %s, true", m, back, ok, code)
			}
		})
	}
}

func TestModeTranslation_Untranslatable(t *testing.T) {
	if m, ok := ModeFromDevice(heatpump.ModeUnknown); ok {
		t.Errorf("ModeFromDevice(UNKNOWN) = %q, true; want no translation", m)
	}
	if m, ok := ModeFromDevice(heatpump.Mode(7)); ok {
		t.Errorf("ModeFromDevice(7) = %q, true; want no translation", m)
	}
	if _, ok := ModeToDevice(ModeOff); ok {
		t.Error("ModeToDevice(off) ok = true; off is carried by OnOff")
	}
	if _, ok := ModeToDevice(Mode("turbo")); ok {
		t.Error("ModeToDevice(turbo) ok = true")
	}
}

func TestFanTranslation(t *testing.T) {
	tests := []struct {
		device   heatpump.FanMode
		abstract FanMode
	}{
		{heatpump.FanAuto, FanAuto},
		{heatpump.FanLow, FanLow},
		{heatpump.FanMedium, FanMedium},
		{heatpump.FanHigh, FanHigh},
	}

	for _, tt := range tests {
		t.Run(string(tt.abstract), func(t *testing.T) {
			if got, ok := FanFromDevice(tt.device); !ok || got != tt.abstract {
				t.Errorf("FanFromDevice(%s) = %q, %t", tt.device, got, ok)
			}
			if got, ok := FanToDevice(tt.abstract); !ok || got != tt.device {
				t.Errorf("FanToDevice(%q) = %s, %t", tt.abstract, got, ok)
			}
		})
	}

	if _, ok := FanFromDevice(heatpump.FanQuiet); ok {
		t.Error("FanFromDevice(FAN_QUIET) ok = true; want no translation")
	}
	if _, ok := FanToDevice(FanMode("")); ok {
		t.Error("FanToDevice(\"\") ok = true")
	}
}
