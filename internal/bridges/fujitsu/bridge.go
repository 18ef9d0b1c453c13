package fujitsu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/fujitsu-bridge/internal/climate"
	"github.com/nerrad567/fujitsu-bridge/internal/heatpump"
	"github.com/nerrad567/fujitsu-bridge/internal/infrastructure/mqtt"
)

const (
	// DefaultUpdateInterval is the reconciliation tick when none is configured.
	DefaultUpdateInterval = time.Second

	// commandTimeout bounds a single control request from MQTT.
	commandTimeout = 5 * time.Second

	// minTopicParts is {prefix}/{category}/{protocol}/{id}.
	minTopicParts = 4
)

// Source values passed to observers.
const (
	SourceUnit    = "unit"
	SourceControl = "control"
)

// MQTTClient is the subset of the MQTT client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// ProtocolStats is implemented by protocols that expose bus counters.
// *heatpump.HeatPump satisfies it.
type ProtocolStats interface {
	Stats() heatpump.Stats
}

// Logger is the structured logger used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// StateObserver is called with each published state (SourceUnit) and with
// the desired state after each accepted control request (SourceControl).
// Observers run on the caller's goroutine and must not block.
type StateObserver func(state climate.State, source string)

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// BridgeID identifies this indoor unit in topics and messages. Required.
	BridgeID string

	// Version is reported in health messages.
	Version string

	// Protocol is the heat-pump protocol. Its transport must be connected
	// before Start. Required.
	Protocol climate.Protocol

	// Timing overrides the controller's default durations.
	Timing climate.Timing

	// UpdateInterval is the reconciliation tick. Default: 1s.
	UpdateInterval time.Duration

	// HealthInterval is how often health is published. Default: 30s.
	HealthInterval time.Duration

	// MQTTClient is optional. Without it the bridge still reconciles and
	// feeds observers, which is how the console runs.
	MQTTClient MQTTClient

	// Topics builds MQTT topic names.
	Topics mqtt.Topics

	// QoS for published messages. Default: 1.
	QoS byte

	Logger Logger
}

// Bridge runs a climate controller and exposes it over MQTT.
type Bridge struct {
	id             string
	controller     *climate.Controller
	stats          ProtocolStats
	mqtt           MQTTClient
	topics         mqtt.Topics
	qos            byte
	updateInterval time.Duration
	health         *HealthReporter
	logger         Logger

	observers   []StateObserver
	observersMu sync.RWMutex

	commands      atomic.Uint64
	commandErrors atomic.Uint64

	subMu      sync.Mutex
	subscribed []string

	// Shutdown coordination
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// NewBridge creates a bridge and its climate controller.
// Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.BridgeID == "" {
		return nil, ErrNoBridgeID
	}
	if opts.Protocol == nil {
		return nil, ErrNoProtocol
	}

	logger := opts.Logger
	if logger == nil {
		logger = climate.NopLogger()
	}
	interval := opts.UpdateInterval
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	qos := opts.QoS
	if qos == 0 {
		qos = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		id:             opts.BridgeID,
		mqtt:           opts.MQTTClient,
		topics:         opts.Topics,
		qos:            qos,
		updateInterval: interval,
		logger:         logger,
		done:           make(chan struct{}),
		ctx:            ctx,
		ctxCancel:      cancel,
	}
	if ps, ok := opts.Protocol.(ProtocolStats); ok {
		b.stats = ps
	}

	controller, err := climate.NewController(climate.Options{
		Protocol:  opts.Protocol,
		Timing:    opts.Timing,
		Publisher: climate.PublisherFunc(b.publishState),
		Logger:    logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating climate controller: %w", err)
	}
	b.controller = controller

	if opts.MQTTClient != nil {
		b.health = NewHealthReporter(HealthReporterConfig{
			BridgeID:       opts.BridgeID,
			Version:        opts.Version,
			Interval:       opts.HealthInterval,
			StaleAfter:     3 * interval,
			Topic:          opts.Topics.BridgeHealth(Protocol, opts.BridgeID),
			Publisher:      opts.MQTTClient,
			ProtocolStats:  b.protocolStats,
			StatisticsFunc: b.statistics,
			Logger:         logger,
		})
	}

	return b, nil
}

// Start seeds the controller, starts the pump and tick loop, and subscribes
// to commands and requests when MQTT is configured.
func (b *Bridge) Start(ctx context.Context) error {
	started := false
	b.startOnce.Do(func() { started = true })
	if !started {
		return climate.ErrAlreadyStarted
	}

	if b.health != nil {
		if err := b.health.PublishStarting(); err != nil {
			b.logger.Error("failed to publish starting status", "error", err)
		}
	}

	if err := b.controller.Setup(b.ctx); err != nil {
		return fmt.Errorf("starting climate controller: %w", err)
	}

	if b.mqtt != nil {
		for _, sub := range []struct{ kind, topic string }{
			{"commands", b.topics.AllBridgeCommands(Protocol)},
			{"requests", b.topics.AllBridgeRequests(Protocol)},
		} {
			if err := b.subscribe(sub.topic); err != nil {
				b.unsubscribeAll()
				b.controller.Stop()
				return fmt.Errorf("subscribe to %s: %w", sub.kind, err)
			}
			b.logger.Info("subscribed to "+sub.kind, "topic", sub.topic)
		}
	}

	b.wg.Add(1)
	go b.tickLoop(ctx)

	if b.health != nil {
		b.health.Start(ctx)
	}

	b.logger.Info("bridge started",
		"bridge_id", b.id,
		"update_interval", b.updateInterval,
	)
	return nil
}

// Stop shuts the bridge down: MQTT subscriptions, tick loop, pump, then
// health (which publishes a final "stopping" status).
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.unsubscribeAll()
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()
		b.controller.Stop()
		if b.health != nil {
			b.health.Stop()
		}
		b.logger.Info("bridge stopped", "bridge_id", b.id)
	})
}

func (b *Bridge) subscribe(topic string) error {
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleMQTTMessage); err != nil {
		return err
	}
	b.subMu.Lock()
	b.subscribed = append(b.subscribed, topic)
	b.subMu.Unlock()
	return nil
}

// unsubscribeAll drops the bridge's subscriptions so no command is accepted
// while shutting down. Failures are logged; the broker forgets them on
// disconnect anyway.
func (b *Bridge) unsubscribeAll() {
	b.subMu.Lock()
	topics := b.subscribed
	b.subscribed = nil
	b.subMu.Unlock()

	for _, topic := range topics {
		if err := b.mqtt.Unsubscribe(topic); err != nil {
			b.logger.Warn("unsubscribe failed", "topic", topic, "error", err)
		}
	}
}

// Done is closed once Stop has been called.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// tickLoop calls UpdateState every update interval.
func (b *Bridge) tickLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			b.controller.UpdateState(b.ctx)
		}
	}
}

// AddObserver registers fn for state notifications.
func (b *Bridge) AddObserver(fn StateObserver) {
	b.observersMu.Lock()
	b.observers = append(b.observers, fn)
	b.observersMu.Unlock()
}

func (b *Bridge) notify(state climate.State, source string) {
	b.observersMu.RLock()
	observers := b.observers
	b.observersMu.RUnlock()

	for _, fn := range observers {
		fn(state, source)
	}
}

// publishState is the controller's publisher. It runs outside the shared
// lock, once per changed state.
func (b *Bridge) publishState(state climate.State) {
	if b.mqtt != nil {
		payload, err := json.Marshal(NewStateMessage(b.id, state))
		if err != nil {
			b.logger.Error("failed to marshal state", "error", err)
		} else if err := b.mqtt.Publish(b.topics.BridgeState(Protocol, b.id), payload, b.qos, true); err != nil {
			b.logger.Error("failed to publish state", "error", err)
		}
	}
	b.notify(state, SourceUnit)
}

// Control validates req against the traits and applies it.
//
// Returns:
//   - climate.ErrInvalidRequest (wrapped) if validation fails
//   - climate.ErrLockTimeout if the shared state stayed busy
//   - nil once the request is queued for the pump
func (b *Bridge) Control(ctx context.Context, req climate.Request) error {
	b.commands.Add(1)

	if err := b.controller.Traits().Validate(req); err != nil {
		b.commandErrors.Add(1)
		return err
	}
	if err := b.controller.Control(ctx, req); err != nil {
		b.commandErrors.Add(1)
		return err
	}

	b.notify(desiredState(b.controller.State(), req), SourceControl)
	return nil
}

// desiredState overlays a request on the current state.
func desiredState(s climate.State, req climate.Request) climate.State {
	if req.Mode != nil {
		s.Mode = *req.Mode
	}
	if req.TargetTemperature != nil {
		s.TargetTemperature = *req.TargetTemperature
	}
	if req.Preset != nil {
		s.Preset = *req.Preset
	}
	if req.FanMode != nil {
		s.FanMode = *req.FanMode
	}
	return s
}

// handleMQTTMessage routes command and request messages.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		b.logger.Warn("invalid topic format", "topic", topic)
		return
	}

	category := parts[len(parts)-3]
	id := parts[len(parts)-1]

	switch category {
	case "command":
		if id != b.id {
			return
		}
		b.handleCommand(payload)
	case "request":
		b.handleRequest(id, payload)
	default:
		b.logger.Warn("unknown message type", "topic", topic)
	}
}

func (b *Bridge) handleCommand(payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logger.Warn("failed to parse command", "error", err)
		b.commandErrors.Add(1)
		b.publishAck(NewAckError(cmd, b.id, ErrCodeInvalidCommand, "malformed command: "+err.Error()))
		return
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	b.logger.Info("received command",
		"command_id", cmd.ID,
		"command", cmd.Command,
		"source", cmd.Source,
	)

	if cmd.Command != CommandSet {
		b.commandErrors.Add(1)
		b.publishAck(NewAckError(cmd, b.id, ErrCodeInvalidCommand,
			fmt.Sprintf("%v: %q", ErrUnknownCommand, cmd.Command)))
		return
	}

	req, err := cmd.Parameters.ToRequest()
	if err != nil {
		b.commandErrors.Add(1)
		b.publishAck(NewAckError(cmd, b.id, ErrCodeInvalidParameters, err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	switch err := b.Control(ctx, req); {
	case err == nil:
		b.publishAck(NewAckMessage(cmd, b.id, AckAccepted))
	case errors.Is(err, climate.ErrInvalidRequest):
		b.publishAck(NewAckError(cmd, b.id, ErrCodeInvalidParameters, err.Error()))
	case errors.Is(err, climate.ErrLockTimeout):
		b.publishAck(NewAckError(cmd, b.id, ErrCodeTimeout, err.Error()))
	default:
		b.logger.Error("command failed", "command_id", cmd.ID, "error", err)
		b.publishAck(NewAckError(cmd, b.id, ErrCodeBridgeError, err.Error()))
	}
}

func (b *Bridge) publishAck(ack AckMessage) {
	if ack.Error != nil {
		b.logger.Warn("command rejected",
			"command_id", ack.CommandID,
			"code", ack.Error.Code,
			"message", ack.Error.Message,
		)
	}

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("failed to marshal ack", "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.BridgeAck(Protocol, b.id), payload, b.qos, false); err != nil {
		b.logger.Error("failed to publish ack", "error", err)
	}
}

func (b *Bridge) handleRequest(topicID string, payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logger.Warn("failed to parse request", "error", err)
		return
	}
	if req.BridgeID != "" && req.BridgeID != b.id {
		return
	}
	if req.RequestID == "" {
		req.RequestID = topicID
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	b.logger.Debug("received request", "request_id", req.RequestID, "action", req.Action)

	resp := ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		BridgeID:  b.id,
		Success:   true,
	}

	switch req.Action {
	case ActionReadState:
		resp.Data = map[string]any{"state": b.controller.State()}
	case ActionTraits:
		resp.Data = map[string]any{"traits": b.controller.Traits()}
	case ActionStats:
		resp.Data = map[string]any{"statistics": b.statistics()}
	default:
		resp.Success = false
		resp.Error = &ResponseError{
			Code:    ErrCodeInvalidCommand,
			Message: fmt.Sprintf("unknown action: %s", req.Action),
		}
	}

	respPayload, err := json.Marshal(resp)
	if err != nil {
		b.logger.Error("failed to marshal response", "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.BridgeResponse(Protocol, req.RequestID), respPayload, b.qos, false); err != nil {
		b.logger.Error("failed to publish response", "error", err)
	}
}

// ID returns the bridge ID.
func (b *Bridge) ID() string {
	return b.id
}

// State returns the last reconciled climate state.
func (b *Bridge) State() climate.State {
	return b.controller.State()
}

// Traits returns the climate entity capabilities.
func (b *Bridge) Traits() climate.Traits {
	return b.controller.Traits()
}

// UpdateState runs one reconciliation outside the tick loop.
func (b *Bridge) UpdateState(ctx context.Context) bool {
	return b.controller.UpdateState(ctx)
}

func (b *Bridge) protocolStats() heatpump.Stats {
	if b.stats == nil {
		return heatpump.Stats{}
	}
	return b.stats.Stats()
}

func (b *Bridge) statistics() *BridgeStatistics {
	return NewBridgeStatistics(
		b.controller.Stats(),
		b.protocolStats(),
		b.commands.Load(),
		b.commandErrors.Load(),
	)
}

// Metrics contains bridge data for the API metrics endpoint and telemetry.
type Metrics struct {
	BridgeID      string         `json:"bridge_id"`
	MQTTConnected bool           `json:"mqtt_connected"`
	Status        HealthStatus   `json:"status"`
	Climate       climate.Stats  `json:"climate"`
	Protocol      heatpump.Stats `json:"protocol"`
	Commands      uint64         `json:"commands"`
	CommandErrors uint64         `json:"command_errors"`
}

// GetMetrics returns a snapshot of the bridge counters.
func (b *Bridge) GetMetrics() Metrics {
	m := Metrics{
		BridgeID:      b.id,
		Status:        HealthHealthy,
		Climate:       b.controller.Stats(),
		Protocol:      b.protocolStats(),
		Commands:      b.commands.Load(),
		CommandErrors: b.commandErrors.Load(),
	}
	if b.mqtt != nil {
		m.MQTTConnected = b.mqtt.IsConnected()
	}
	if b.health != nil {
		m.Status, _ = b.health.determineStatus()
	}
	return m
}
