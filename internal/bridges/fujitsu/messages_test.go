package fujitsu

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/fujitsu-bridge/internal/climate"
	"github.com/nerrad567/fujitsu-bridge/internal/heatpump"
)

func ptr[T any](v T) *T { return &v }

func TestCommandParameters_ToRequest(t *testing.T) {
	params := CommandParameters{
		Mode:              ptr("HEAT"),
		TargetTemperature: ptr(22.5),
		Preset:            ptr("eco"),
		FanMode:           ptr("high"),
	}

	req, err := params.ToRequest()
	if err != nil {
		t.Fatalf("ToRequest() error = %v", err)
	}
	if req.Mode == nil || *req.Mode != climate.ModeHeat {
		t.Errorf("Mode = %v, want heat", req.Mode)
	}
	if req.TargetTemperature == nil || *req.TargetTemperature != 22.5 {
		t.Errorf("TargetTemperature = %v, want 22.5", req.TargetTemperature)
	}
	if req.Preset == nil || *req.Preset != climate.PresetEco {
		t.Errorf("Preset = %v, want eco", req.Preset)
	}
	if req.FanMode == nil || *req.FanMode != climate.FanHigh {
		t.Errorf("FanMode = %v, want high", req.FanMode)
	}
}

func TestCommandParameters_ToRequest_Partial(t *testing.T) {
	req, err := CommandParameters{Preset: ptr("none")}.ToRequest()
	if err != nil {
		t.Fatalf("ToRequest() error = %v", err)
	}
	if req.Mode != nil || req.TargetTemperature != nil || req.FanMode != nil {
		t.Errorf("ToRequest() = %+v, want only preset set", req)
	}
}

func TestCommandParameters_ToRequest_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		params CommandParameters
	}{
		{name: "mode", params: CommandParameters{Mode: ptr("turbo")}},
		{name: "preset", params: CommandParameters{Preset: ptr("boost")}},
		{name: "fan", params: CommandParameters{FanMode: ptr("quiet")}},
		{name: "several", params: CommandParameters{Mode: ptr("x"), FanMode: ptr("y")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.params.ToRequest()
			if !errors.Is(err, ErrInvalidParameters) {
				t.Errorf("ToRequest() error = %v, want ErrInvalidParameters", err)
			}
		})
	}
}

func TestNewAckError_Status(t *testing.T) {
	cmd := CommandMessage{ID: "cmd-7"}

	tests := []struct {
		code string
		want AckStatus
	}{
		{ErrCodeInvalidCommand, AckFailed},
		{ErrCodeInvalidParameters, AckFailed},
		{ErrCodeBridgeError, AckFailed},
		{ErrCodeTimeout, AckTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ack := NewAckError(cmd, "lounge", tt.code, "nope")
			if ack.Status != tt.want {
				t.Errorf("Status = %s, want %s", ack.Status, tt.want)
			}
			if ack.CommandID != "cmd-7" || ack.BridgeID != "lounge" || ack.Protocol != Protocol {
				t.Errorf("ack identity = %+v", ack)
			}
			if ack.Error == nil || ack.Error.Code != tt.code || ack.Error.Message != "nope" {
				t.Errorf("Error = %+v", ack.Error)
			}
		})
	}
}

func TestNewBridgeStatistics(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	cs := climate.Stats{
		UpdateSkips:     2,
		ControlTimeouts: 1,
		Publishes:       7,
		Pump:            climate.PumpStats{LockSkips: 3},
	}
	ps := heatpump.Stats{FramesRx: 100, FramesTx: 98, DecodeErrors: 4, LastFrame: last}

	got := NewBridgeStatistics(cs, ps, 5, 1)

	want := BridgeStatistics{
		FramesReceived:  100,
		FramesSent:      98,
		DecodeErrors:    4,
		PumpLockSkips:   3,
		UpdateLockSkips: 2,
		ControlTimeouts: 1,
		Publishes:       7,
		Commands:        5,
		CommandErrors:   1,
	}
	if got.LastFrame == nil {
		t.Fatal("LastFrame = nil, want set")
	}
	if !got.LastFrame.Equal(last) || got.LastFrame.Location() != time.UTC {
		t.Errorf("LastFrame = %v, want %v in UTC", got.LastFrame, last)
	}
	got.LastFrame = nil
	if *got != want {
		t.Errorf("NewBridgeStatistics() = %+v, want %+v", *got, want)
	}

	if NewBridgeStatistics(cs, heatpump.Stats{}, 0, 0).LastFrame != nil {
		t.Error("LastFrame should be nil before the first frame")
	}
}

func TestStateMessage_JSON(t *testing.T) {
	msg := NewStateMessage("lounge", climate.State{
		CurrentTemperature: 21,
		TargetTemperature:  23,
		Mode:               climate.ModeDry,
		Preset:             climate.PresetNone,
	})

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	state, ok := raw["state"].(map[string]any)
	if !ok {
		t.Fatalf("state field = %T, want object", raw["state"])
	}
	if state["mode"] != "dry" || state["target_temperature"] != 23.0 {
		t.Errorf("state = %v", state)
	}
	if _, ok := state["fan_mode"]; ok {
		t.Error("unset fan_mode should be omitted")
	}
	if raw["protocol"] != Protocol {
		t.Errorf("protocol = %v, want %s", raw["protocol"], Protocol)
	}
}
