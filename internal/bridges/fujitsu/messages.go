package fujitsu

import (
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/fujitsu-bridge/internal/climate"
	"github.com/nerrad567/fujitsu-bridge/internal/heatpump"
)

// Protocol is the protocol segment used in every topic and message.
const Protocol = "fujitsu"

// CommandSet is the only command the climate entity accepts.
const CommandSet = "set"

// Request actions.
const (
	ActionReadState = "read_state"
	ActionTraits    = "traits"
	ActionStats     = "read_stats"
)

// CommandMessage asks the bridge to change the climate entity.
// Topic: {prefix}/command/fujitsu/{bridge_id}
type CommandMessage struct {
	// ID correlates the command with its acknowledgement. Generated when empty.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp,omitzero"`

	// Command must be "set".
	Command string `json:"command"`

	Parameters CommandParameters `json:"parameters"`

	// Source indicates where the command originated (e.g. "app", "automation").
	Source string `json:"source,omitempty"`
}

// CommandParameters carries the requested fields. Absent fields are left
// unchanged.
type CommandParameters struct {
	Mode              *string  `json:"mode,omitempty"`
	TargetTemperature *float64 `json:"target_temperature,omitempty"`
	Preset            *string  `json:"preset,omitempty"`
	FanMode           *string  `json:"fan_mode,omitempty"`
}

// ToRequest parses the parameters into a control request. All unparseable
// fields are reported together.
func (p CommandParameters) ToRequest() (climate.Request, error) {
	var (
		req  climate.Request
		errs []error
	)

	if p.Mode != nil {
		m, err := climate.ParseMode(*p.Mode)
		if err != nil {
			errs = append(errs, err)
		} else {
			req.Mode = &m
		}
	}
	if p.TargetTemperature != nil {
		v := *p.TargetTemperature
		req.TargetTemperature = &v
	}
	if p.Preset != nil {
		pr, err := climate.ParsePreset(*p.Preset)
		if err != nil {
			errs = append(errs, err)
		} else {
			req.Preset = &pr
		}
	}
	if p.FanMode != nil {
		f, err := climate.ParseFanMode(*p.FanMode)
		if err != nil {
			errs = append(errs, err)
		} else {
			req.FanMode = &f
		}
	}

	if len(errs) > 0 {
		return climate.Request{}, fmt.Errorf("%w: %w", ErrInvalidParameters, errors.Join(errs...))
	}
	return req, nil
}

// AckStatus represents the acknowledgement status of a command.
type AckStatus string

const (
	// AckAccepted indicates the request was written for the pump to transmit.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command was rejected.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the shared state could not be acquired in time.
	AckTimeout AckStatus = "timeout"
)

// AckMessage acknowledges a command.
// Topic: {prefix}/ack/fujitsu/{bridge_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	BridgeID  string    `json:"bridge_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command and request failures.
const (
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage carries the climate entity state.
// Topic: {prefix}/state/fujitsu/{bridge_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	BridgeID  string        `json:"bridge_id"`
	Timestamp time.Time     `json:"timestamp"`
	State     climate.State `json:"state"`
	Protocol  string        `json:"protocol"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge status.
// Topic: {prefix}/health/fujitsu/{bridge_id}
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string            `json:"bridge"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        HealthStatus      `json:"status"`
	Version       string            `json:"version,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Statistics    *BridgeStatistics `json:"statistics,omitempty"`
	Reason        string            `json:"reason,omitempty"`
}

// BridgeStatistics contains operational counters.
type BridgeStatistics struct {
	FramesReceived  uint64     `json:"frames_received"`
	FramesSent      uint64     `json:"frames_sent"`
	DecodeErrors    uint64     `json:"decode_errors"`
	LastFrame       *time.Time `json:"last_frame,omitempty"`
	PumpLockSkips   uint64     `json:"pump_lock_skips"`
	UpdateLockSkips uint64     `json:"update_lock_skips"`
	ControlTimeouts uint64     `json:"control_timeouts"`
	Publishes       uint64     `json:"publishes"`
	Commands        uint64     `json:"commands"`
	CommandErrors   uint64     `json:"command_errors"`
}

// RequestMessage is a request/response query.
// Topic: {prefix}/request/fujitsu/{request_id}
type RequestMessage struct {
	// RequestID correlates the response. Taken from the topic when empty.
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp,omitzero"`

	// Action is read_state, traits or read_stats.
	Action string `json:"action"`

	// BridgeID targets one bridge when several share a broker. Empty means any.
	BridgeID string `json:"bridge_id,omitempty"`
}

// ResponseMessage answers a request.
// Topic: {prefix}/response/fujitsu/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	BridgeID  string         `json:"bridge_id"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAckMessage creates an acknowledgement for a command.
func NewAckMessage(cmd CommandMessage, bridgeID string, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		BridgeID:  bridgeID,
		Status:    status,
		Protocol:  Protocol,
	}
}

// NewAckError creates a failed or timed-out acknowledgement.
func NewAckError(cmd CommandMessage, bridgeID, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	ack := NewAckMessage(cmd, bridgeID, status)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// NewStateMessage creates a state message.
func NewStateMessage(bridgeID string, state climate.State) StateMessage {
	return StateMessage{
		BridgeID:  bridgeID,
		Timestamp: time.Now().UTC(),
		State:     state,
		Protocol:  Protocol,
	}
}

// NewBridgeStatistics flattens controller and protocol counters.
func NewBridgeStatistics(cs climate.Stats, ps heatpump.Stats, commands, commandErrors uint64) *BridgeStatistics {
	s := &BridgeStatistics{
		FramesReceived:  ps.FramesRx,
		FramesSent:      ps.FramesTx,
		DecodeErrors:    ps.DecodeErrors,
		PumpLockSkips:   cs.Pump.LockSkips,
		UpdateLockSkips: cs.UpdateSkips,
		ControlTimeouts: cs.ControlTimeouts,
		Publishes:       cs.Publishes,
		Commands:        commands,
		CommandErrors:   commandErrors,
	}
	if !ps.LastFrame.IsZero() {
		last := ps.LastFrame.UTC()
		s.LastFrame = &last
	}
	return s
}

// NewLWTMessage creates the Last Will and Testament health message.
// The broker publishes it if the bridge disconnects unexpectedly.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}
