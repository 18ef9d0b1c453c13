package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/fujitsu-bridge/internal/climate"
	"github.com/nerrad567/fujitsu-bridge/internal/heatpump"
)

// Measurement names.
const (
	MeasurementClimate     = "climate"
	MeasurementBridgeStats = "bridge_stats"
)

// WriteClimateState records a published climate state.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteClimateState("lounge", controller.State())
func (c *Client) WriteClimateState(bridgeID string, state climate.State) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(climatePoint(bridgeID, state, time.Now()))
}

// WriteBridgeStats records the bridge's protocol and lock counters.
func (c *Client) WriteBridgeStats(bridgeID string, ctrl climate.Stats, proto heatpump.Stats) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statsPoint(bridgeID, ctrl, proto, time.Now()))
}

func climatePoint(bridgeID string, s climate.State, ts time.Time) *write.Point {
	fanMode := string(s.FanMode)
	if fanMode == "" {
		fanMode = "unset"
	}
	return write.NewPoint(
		MeasurementClimate,
		map[string]string{
			"bridge_id": bridgeID,
			"mode":      string(s.Mode),
			"fan_mode":  fanMode,
			"preset":    string(s.Preset),
		},
		map[string]interface{}{
			"current_temperature": s.CurrentTemperature,
			"target_temperature":  s.TargetTemperature,
			"on":                  s.Mode != climate.ModeOff,
		},
		ts,
	)
}

func statsPoint(bridgeID string, ctrl climate.Stats, proto heatpump.Stats, ts time.Time) *write.Point {
	// Counters are uint64; InfluxDB fields are signed.
	// #nosec G115 -- counters will not exceed int64 in practice
	return write.NewPoint(
		MeasurementBridgeStats,
		map[string]string{"bridge_id": bridgeID},
		map[string]interface{}{
			"frames_rx":        int64(proto.FramesRx),
			"frames_tx":        int64(proto.FramesTx),
			"decode_errors":    int64(proto.DecodeErrors),
			"read_errors":      int64(proto.ReadErrors),
			"update_skips":     int64(ctrl.UpdateSkips),
			"control_timeouts": int64(ctrl.ControlTimeouts),
			"publishes":        int64(ctrl.Publishes),
			"pump_lock_skips":  int64(ctrl.Pump.LockSkips),
			"send_errors":      int64(ctrl.Pump.SendErrors),
		},
		ts,
	)
}
